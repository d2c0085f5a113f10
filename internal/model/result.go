package model

// ExtractionMethod 数据提取方式
type ExtractionMethod string

const (
	MethodPrimary  ExtractionMethod = "primary"  // 页面结构化数据对象
	MethodFallback ExtractionMethod = "fallback" // 解析页面元素
	MethodManual   ExtractionMethod = "manual"   // 数据源不可自动化，转人工收集
	MethodNone     ExtractionMethod = "none"     // 会话失败，未进入提取阶段
)

// Payload 原始数据载荷：PrimaryPayload / FallbackPayload / EmptyPayload 三选一
type Payload interface {
	payload()
}

// PrimaryPayload 结构化数据：日期 -> 实体 -> 原始值（也接受 实体 -> 日期 -> 原始值）
type PrimaryPayload map[string]map[string]string

// FallbackPayload 从页面元素中扫描出的原始值序列，保持页面顺序
type FallbackPayload []RawValue

// EmptyPayload 无数据
type EmptyPayload struct{}

func (PrimaryPayload) payload()  {}
func (FallbackPayload) payload() {}
func (EmptyPayload) payload()    {}

// RawValue 单个原始值
type RawValue struct {
	Entity string
	Date   string // 可选，页面未给出日期时为空
	Raw    string
}

// RawSourceResult 一个数据源一次采集的原始结果，返回后不再修改
type RawSourceResult struct {
	Source        Source
	Method        ExtractionMethod
	Payload       Payload
	EvidencePaths []string
	Failure       string // 非空表示该数据源采集失败或需人工介入
}

// EmptyResult 构造一个结构完整但无数据的结果
func EmptyResult(source Source, method ExtractionMethod, failure string) RawSourceResult {
	return RawSourceResult{
		Source:  source,
		Method:  method,
		Payload: EmptyPayload{},
		Failure: failure,
	}
}

// IsEmpty 载荷中是否没有任何值
func (r RawSourceResult) IsEmpty() bool {
	switch p := r.Payload.(type) {
	case PrimaryPayload:
		for _, inner := range p {
			if len(inner) > 0 {
				return false
			}
		}
		return true
	case FallbackPayload:
		return len(p) == 0
	default:
		return true
	}
}
