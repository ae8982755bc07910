package model

import "time"

// PluginName 本选课方式在 enrol_instances.enrol 中的取值
const PluginName = "prerequisite"

// InstanceStatus 选课实例状态（与宿主平台取值一致）
type InstanceStatus int16

const (
	InstanceEnabled  InstanceStatus = 0
	InstanceDisabled InstanceStatus = 1
)

// AggregationMode 先修课程聚合方式
type AggregationMode int16

const (
	AggregationAll AggregationMode = 1 // 全部先修课程均需完成
	AggregationAny AggregationMode = 2 // 任一先修课程完成即可
)

// String 返回 API 使用的取值
func (m AggregationMode) String() string {
	switch m {
	case AggregationAll:
		return "all"
	case AggregationAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParseAggregationMode 解析 API 取值，未知取值返回 false
func ParseAggregationMode(s string) (AggregationMode, bool) {
	switch s {
	case "all":
		return AggregationAll, true
	case "any":
		return AggregationAny, true
	default:
		return 0, false
	}
}

// EnrolInstance 选课实例表 — 对应 enrol_instances
type EnrolInstance struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"            json:"id"`
	Enrol       string          `gorm:"type:varchar(20);not null"           json:"enrol"`
	CourseID    int64           `gorm:"not null;index"                      json:"course_id"`
	Name        string          `gorm:"type:varchar(255);not null;default:''" json:"name"`
	Status      InstanceStatus  `gorm:"not null;default:0"                  json:"status"`
	Password    string          `gorm:"type:varchar(255);not null;default:''" json:"-"`
	RoleID      int64           `gorm:"not null"                            json:"role_id"`
	EnrolPeriod int64           `gorm:"not null;default:0"                  json:"enrol_period"` // 秒，0 表示不限期
	Aggregation AggregationMode `gorm:"not null;default:1"                  json:"aggregation"`
	VersionedModel

	Course *Course `gorm:"foreignKey:CourseID;references:ID" json:"course,omitempty"`
}

// TableName 指定表名
func (EnrolInstance) TableName() string { return "enrol_instances" }

// IsEnabled 实例是否启用
func (i *EnrolInstance) IsEnabled() bool {
	return i.Status == InstanceEnabled
}

// HasPassword 是否设置了选课密码
func (i *EnrolInstance) HasPassword() bool {
	return i.Password != ""
}

// EnrolPeriodDuration 选课有效期
func (i *EnrolInstance) EnrolPeriodDuration() time.Duration {
	return time.Duration(i.EnrolPeriod) * time.Second
}
