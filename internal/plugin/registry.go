package plugin

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrProviderExists   = errors.New("选课方式已注册")
	ErrProviderNotFound = errors.New("选课方式不存在")
)

// Registry 选课方式注册表
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register 注册选课方式，名称重复时返回 ErrProviderExists
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[p.Name()]; ok {
		return ErrProviderExists
	}
	r.providers[p.Name()] = p
	return nil
}

// Lookup 按名称查找选课方式
func (r *Registry) Lookup(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

// List 按名称排序返回全部选课方式
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Provider, 0, len(names))
	for _, name := range names {
		out = append(out, r.providers[name])
	}
	return out
}
