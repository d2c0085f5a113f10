package model

// Source 数据源（一个数据源对应报表中的一个工作表）
type Source string

const (
	SourceSocial Source = "social" // 微信指数
	SourceSearch Source = "search" // 百度搜索指数
	SourceNews   Source = "news"   // 百度资讯指数
)

// Sources 报表中数据源工作表的固定顺序
var Sources = []Source{SourceSocial, SourceSearch, SourceNews}

// SheetName 工作表名称
func (s Source) SheetName() string {
	switch s {
	case SourceSocial:
		return "微信指数趋势"
	case SourceSearch:
		return "百度指数搜索"
	case SourceNews:
		return "百度指数资讯"
	default:
		return string(s)
	}
}

// SeriesLabel 每日指数列名后缀
func (s Source) SeriesLabel() string {
	switch s {
	case SourceSearch:
		return "每日搜索指数"
	case SourceNews:
		return "每日资讯指数"
	default:
		return "每日指数"
	}
}

// TrendHeader 趋势对比列表头
func (s Source) TrendHeader() string {
	switch s {
	case SourceSearch:
		return "各家每日搜索指数趋势对比"
	case SourceNews:
		return "各家每日资讯指数趋势对比"
	default:
		return "各家指数趋势对比"
	}
}

// SummaryHeader 汇总表中该数据源的列名
func (s Source) SummaryHeader() string {
	switch s {
	case SourceSocial:
		return "微信指数平均"
	default:
		return s.SheetName() + "平均"
	}
}
