package persona

import "strings"

// Store 按 ID 查找咨询可用的角色。
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	IDs() []string
}

// MemoryStore 是只读的内存角色表，保持种子顺序。
type MemoryStore struct {
	items []Persona
	byID  map[string]int
}

// NewMemoryStore 以 items 建表；ID 重复时保留首个，ID 比较忽略大小写。
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]int, len(items))}
	for _, item := range items {
		key := normalizeID(item.ID)
		if _, dup := s.byID[key]; dup || key == "" {
			continue
		}
		s.byID[key] = len(s.items)
		s.items = append(s.items, item)
	}
	return s
}

func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID 接受 "Wellness_Specialist" 这类大小写变体。
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	idx, ok := s.byID[normalizeID(id)]
	if !ok {
		return Persona{}, false
	}
	return s.items[idx], true
}

// IDs 返回全部角色 ID，用于错误提示。
func (s *MemoryStore) IDs() []string {
	ids := make([]string, len(s.items))
	for i, item := range s.items {
		ids[i] = item.ID
	}
	return ids
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
