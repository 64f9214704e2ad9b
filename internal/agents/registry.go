package agents

import (
	"fmt"
	"sync"
)

// Registry agent 注册表
//
// 开放列表：控制器按注册顺序逐个调用，不关心具体有哪些 agent。
// Register 按 ID 幂等覆盖（同 ID 重复注册时移除旧条目，新条目追加到末尾）。
type Registry struct {
	mu     sync.Mutex
	agents []Agent
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{}
}

// Register 注册 agent（同 ID 覆盖，空 ID 属于编码错误）
func (r *Registry) Register(a Agent) error {
	if a == nil || a.ID() == "" {
		return fmt.Errorf("agent must have a non-empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.agents {
		if existing.ID() == a.ID() {
			r.agents = append(r.agents[:i], r.agents[i+1:]...)
			break
		}
	}
	r.agents = append(r.agents, a)
	return nil
}

// Unregister 按 ID 移除（未知 ID 为 no-op）
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, a := range r.agents {
		if a.ID() == id {
			r.agents = append(r.agents[:i], r.agents[i+1:]...)
			return
		}
	}
}

// All 返回注册顺序的只读视图（拷贝）
func (r *Registry) All() []Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Clear 清空注册表
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = nil
}
