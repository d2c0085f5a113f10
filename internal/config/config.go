package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Paths       PathsConfig      `toml:"paths"`
	Collection  CollectionConfig `toml:"collection"`
	Browser     BrowserConfig    `toml:"browser"`
	SearchTrend SourceConfig     `toml:"search_trend"`
	SocialTrend SourceConfig     `toml:"social_trend"`
	Server      ServerConfig     `toml:"server"`
	Notify      NotifyConfig     `toml:"notify"`
}

// PathsConfig 目录配置（相对路径以可执行文件所在目录为基准）
type PathsConfig struct {
	DataDir        string `toml:"data_dir"`        // 报表目录
	ScreenshotsDir string `toml:"screenshots_dir"` // 截图目录
	LogsDir        string `toml:"logs_dir"`        // 日志目录
	ReportPrefix   string `toml:"report_prefix"`   // 报表文件名前缀
}

// CollectionConfig 采集配置
type CollectionConfig struct {
	Entities    []string `toml:"entities"`     // 关键词（报表列顺序）
	EntityLabel string   `toml:"entity_label"` // 汇总表首列表头
	Hour        int      `toml:"hour"`         // 每天检查并执行采集的整点
	Timezone    string   `toml:"timezone"`     // 定时任务时区，空表示本地时区
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Headless       bool   `toml:"headless"`
	WindowWidth    int    `toml:"window_width"`
	WindowHeight   int    `toml:"window_height"`
	UserAgent      string `toml:"user_agent"`
	ExecPath       string `toml:"exec_path"`       // 为空时自动查找 Chrome
	TimeoutSeconds int    `toml:"timeout_seconds"` // 页面加载超时
	WaitSeconds    int    `toml:"wait_seconds"`    // 等待页面控件出现的超时
}

// SourceConfig 单个数据源配置
type SourceConfig struct {
	URL              string `toml:"url"`
	ScreenshotPrefix string `toml:"screenshot_prefix"`
}

// ServerConfig 状态接口配置，Listen 为空时不启动
type ServerConfig struct {
	Listen  string `toml:"listen"`
	DevMode bool   `toml:"dev_mode"`
}

// NotifyConfig 采集完成通知，SMTPHost 为空时只写日志
type NotifyConfig struct {
	SMTPHost       string   `toml:"smtp_host"`
	SMTPPort       int      `toml:"smtp_port"`
	Username       string   `toml:"username"`
	Password       string   `toml:"password"`
	From           string   `toml:"from"`
	To             []string `toml:"to"`
	TimeoutSeconds int      `toml:"timeout_seconds"` // 单次发送超时
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path            string
	FileFound       bool
	HeadlessInFile  bool
	HeadlessFromEnv bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Paths: PathsConfig{
			DataDir:        "data",
			ScreenshotsDir: "screenshots",
			LogsDir:        "logs",
			ReportPrefix:   "运营商指数报告",
		},
		Collection: CollectionConfig{
			Entities:    []string{"上海电信", "上海移动", "上海联通"},
			EntityLabel: "运营商",
			Hour:        9,
		},
		Browser: BrowserConfig{
			Headless:       true,
			WindowWidth:    1920,
			WindowHeight:   1080,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			TimeoutSeconds: 30,
			WaitSeconds:    10,
		},
		SearchTrend: SourceConfig{
			URL:              "https://index.baidu.com/v2/index.html#/",
			ScreenshotPrefix: "baidu_index",
		},
		SocialTrend: SourceConfig{
			URL:              "https://index.weixin.qq.com",
			ScreenshotPrefix: "wechat_index",
		},
		Notify: NotifyConfig{
			SMTPPort:       587,
			TimeoutSeconds: 30,
		},
	}
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultConfigPath 可执行文件同目录下的 config.toml
func DefaultConfigPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		exeDir = "."
	}
	return filepath.Join(exeDir, "config.toml")
}

func isKeySpecifiedInToml(data []byte, section, key string) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	sectionAny, ok := raw[section]
	if !ok {
		return false
	}

	sectionMap, ok := sectionAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = sectionMap[key]
	return ok
}

// LoadConfigWithInfo 从指定路径加载配置并返回元信息，path 为空时使用默认路径
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath()
	}
	info := LoadConfigInfo{Path: path}
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.FileFound = true
		info.HeadlessInFile = isKeySpecifiedInToml(data, "browser", "headless")
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case os.IsNotExist(err):
		// 配置文件不存在，使用默认配置
	default:
		return nil, info, err
	}

	info.HeadlessFromEnv = applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, info, err
	}
	return config, info, nil
}

// 环境变量覆盖（用于容器 / 本地调试），返回 headless 是否被覆盖
func applyEnv(config *AppConfig) (headless bool) {
	if v := os.Getenv("INDEX_COLLECTOR_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Browser.Headless = b
			headless = true
		}
	}
	if v := os.Getenv("INDEX_COLLECTOR_CHROME_PATH"); v != "" {
		config.Browser.ExecPath = v
	}
	if v := os.Getenv("INDEX_COLLECTOR_DATA_DIR"); v != "" {
		config.Paths.DataDir = v
	}
	return headless
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Collection.Hour < 0 || c.Collection.Hour > 23 {
		errs = append(errs, fmt.Errorf("collection.hour 必须在 0-23 之间，当前为 %d", c.Collection.Hour))
	}
	if len(c.Collection.Entities) == 0 {
		errs = append(errs, errors.New("collection.entities 不能为空"))
	}
	seen := map[string]bool{}
	for _, e := range c.Collection.Entities {
		e = strings.TrimSpace(e)
		if e == "" {
			errs = append(errs, errors.New("collection.entities 不能包含空关键词"))
			continue
		}
		if seen[e] {
			errs = append(errs, fmt.Errorf("collection.entities 中关键词重复: %s", e))
		}
		seen[e] = true
	}
	if c.Browser.TimeoutSeconds <= 0 || c.Browser.WaitSeconds <= 0 {
		errs = append(errs, errors.New("browser.timeout_seconds 与 browser.wait_seconds 必须大于 0"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location 定时任务使用的时区
func (c *AppConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Collection.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Collection.Timezone)
	if err != nil {
		return nil, fmt.Errorf("collection.timezone 无效: %w", err)
	}
	return loc, nil
}

// PageTimeout 页面加载超时
func (c *AppConfig) PageTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutSeconds) * time.Second
}

// WaitTimeout 控件等待超时
func (c *AppConfig) WaitTimeout() time.Duration {
	return time.Duration(c.Browser.WaitSeconds) * time.Second
}

// SaveConfig 保存配置到指定路径
func SaveConfig(config *AppConfig, path string) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Dirs 运行所需目录的绝对路径
type Dirs struct {
	Reports     string
	Screenshots string
	Logs        string
}

// ResolveDirs 解析目录；相对路径以 baseDir 为基准，baseDir 为空时使用可执行文件目录
func ResolveDirs(config *AppConfig, baseDir string) Dirs {
	if baseDir == "" {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		baseDir = exeDir
	}
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	return Dirs{
		Reports:     resolve(config.Paths.DataDir),
		Screenshots: resolve(config.Paths.ScreenshotsDir),
		Logs:        resolve(config.Paths.LogsDir),
	}
}

// EnsureDirs 确保目录存在（可重复调用）
func EnsureDirs(dirs Dirs) error {
	for _, dir := range []string{dirs.Reports, dirs.Screenshots, dirs.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录 %s 失败: %w", dir, err)
		}
	}
	return nil
}
