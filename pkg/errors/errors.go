package errors

import (
	"errors"
	"sort"
	"strings"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ValidationErrors 字段级校验错误：字段名 → 错误描述
// 调用方按字段回显给用户修正，而非一次性失败
type ValidationErrors map[string]string

// Add 记录字段错误，同一字段后写入的错误覆盖先前的
func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// HasErrors 是否存在任一字段错误
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Error 实现 error 接口，按字段名排序输出
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "参数校验失败: " + strings.Join(parts, "; ")
}

// AsValidationErrors 从错误链中提取 ValidationErrors
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
