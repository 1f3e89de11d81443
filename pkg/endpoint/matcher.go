package endpoint

import "strings"

// InclusionFilter 是顶层目录名的白名单，只在账户根目录生效
type InclusionFilter map[string]struct{}

// ParseInclusionFilter 解析逗号分隔的目录名列表，空项会被忽略
func ParseInclusionFilter(raw string) InclusionFilter {
	return NewInclusionFilter(strings.Split(raw, ",")...)
}

// NewInclusionFilter 根据名称列表创建过滤器
func NewInclusionFilter(names ...string) InclusionFilter {
	filter := make(InclusionFilter)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		filter[n] = struct{}{}
	}
	return filter
}

// Enabled 表示是否配置了过滤
func (f InclusionFilter) Enabled() bool {
	return len(f) > 0
}

// Allows 判断位于 dir 下的条目是否应被镜像。过滤只作用于根目录，已接受目录的子树全部镜像
func (f InclusionFilter) Allows(dir string, e Entry) bool {
	if dir != RootPath || !f.Enabled() {
		return true
	}
	_, ok := f[e.Name]
	return ok
}

// Names 返回过滤器中的名称
func (f InclusionFilter) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	return names
}
