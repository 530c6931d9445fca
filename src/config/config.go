package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Email struct {
		Server        string   `json:"server"`         // IMAP服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码/授权码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	SendEmail struct {
		Server   string   `json:"server"`   // SMTP服务器地址
		Username string   `json:"username"` // 发件人
		Password string   `json:"password"` // 密码/授权码
		To       []string `json:"to"`       // 收件人, 为空时发回 Email.Username
		Subject  string   `json:"subject"`  // 报告邮件主题
	} `json:"send_email"`

	Webhook struct {
		URL     string   `json:"url"`     // 报告推送地址, 为空不推送
		Token   string   `json:"token"`   // Bearer token
		Retries int      `json:"retries"` // 失败重试次数
		Timeout Duration `json:"timeout"` // 单次请求超时
	} `json:"webhook"`

	Ingest struct {
		SkipRows      int    `json:"skip_rows"`      // 表头前需要丢弃的行数
		ReferenceYear int    `json:"reference_year"` // 时间戳补充的年份
		Encoding      string `json:"encoding"`       // CSV编码: auto, utf-8, utf-16, windows-1252
	} `json:"ingest"`

	DataDir        string   `json:"data_dir"`        // 导出文件所在目录
	OutputDir      string   `json:"output_dir"`      // 报告输出目录
	SheetName      string   `json:"sheet_name"`      // XLSX输入工作表, 为空取第一个
	ReportInterval Duration `json:"report_interval"` // watch 模式定时生成报告
	LogName        string   `json:"log_name"`
	LogMaxSize     string   `json:"log_max_size"`
	LogLevel       string   `json:"log_level"`
}

// PresetConfig 分段和阈值预设以及默认查询条件
type PresetConfig struct {
	Bands      map[string]string `json:"bands"`      // 名称 -> 分段边界
	Thresholds map[string]string `json:"thresholds"` // 名称 -> 阈值规则
	Defaults   struct {
		Parameter  string   `json:"parameter"`
		Bands      string   `json:"bands"`
		Thresholds string   `json:"thresholds"`
		Hours      string   `json:"hours"`
		Days       string   `json:"days"`
		Dates      []string `json:"dates"`
		ZoneFilter string   `json:"zone_filter"`
		ZoneMode   string   `json:"zone_mode"`
	} `json:"defaults"`
	Daylight struct {
		SDAThreshold float64 `json:"sda_threshold"`
		UDIThreshold float64 `json:"udi_threshold"`
	} `json:"daylight"`
}

var (
	once           sync.Once
	instance       *Config
	presetInstance *PresetConfig
	mu             sync.RWMutex
)

// DefaultConfig 没有配置文件时使用的默认值
func DefaultConfig() *Config {
	cfg := &Config{
		DataDir:        "./data",
		OutputDir:      "./reports",
		ReportInterval: Duration(time.Hour),
		LogName:        "app.log",
		LogMaxSize:     "10 * 1024 * 1024",
		LogLevel:       "INFO",
	}
	cfg.Email.CheckInterval = Duration(5 * time.Minute)
	cfg.SendEmail.Subject = "Zone band report"
	cfg.Webhook.Retries = 3
	cfg.Webhook.Timeout = Duration(10 * time.Second)
	cfg.Ingest.SkipRows = 2
	cfg.Ingest.ReferenceYear = 1900
	cfg.Ingest.Encoding = "auto"
	return cfg
}

// DefaultPresets 内置的 PMV / DQLS 预设
func DefaultPresets() *PresetConfig {
	p := &PresetConfig{
		Bands: map[string]string{
			"PMV":      "-1,1",
			"DQLS T":   "18,19,22,25,30",
			"DQLS CO2": "600,800,1000,2000",
		},
		Thresholds: map[string]string{
			"PMV":      "above:1:20,below:-1:20",
			"DQLS T":   "25:80,28:40",
			"DQLS CO2": "avg:800,peak:2000",
		},
	}
	p.Defaults.Hours = "0-23"
	p.Defaults.Days = "0-6"
	p.Defaults.ZoneMode = "exclude"
	p.Daylight.SDAThreshold = 50
	p.Daylight.UDIThreshold = 50
	return p
}

// LoadConfig 只加载一次配置, 后续调用返回同一实例
func LoadConfig(jsonFolder, jsonFile, presetJsonFile string) (*Config, *PresetConfig, error) {
	var err error
	once.Do(func() {
		instance, presetInstance, err = loadConfigs(jsonFolder, jsonFile, presetJsonFile)
	})
	return instance, presetInstance, err
}

func loadConfigs(jsonFolder, jsonFile, presetJsonFile string) (*Config, *PresetConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	presetFile := filepath.Join(jsonFolder, presetJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	presetData, err := readOptional(presetFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取预设配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	pcfgChan := make(chan *PresetConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parsePresetConfig(presetData, pcfgChan, errChan)

	return waitForResults(cfgChan, pcfgChan, errChan)
}

// Load 每次都重新读取, 配置文件不存在时使用默认配置
// 命令行入口使用, 服务进程使用 LoadConfig
func Load(jsonFolder, jsonFile, presetJsonFile string) (*Config, *PresetConfig, error) {
	_, err := os.Stat(filepath.Join(jsonFolder, jsonFile))
	if errors.Is(err, os.ErrNotExist) {
		presetData, err := readOptional(filepath.Join(jsonFolder, presetJsonFile))
		if err != nil {
			return nil, nil, fmt.Errorf("读取预设配置文件失败: %w", err)
		}
		pcfg := DefaultPresets()
		if err := json.Unmarshal(presetData, pcfg); err != nil {
			return nil, nil, fmt.Errorf("解析PresetConfig失败: %w", err)
		}
		return DefaultConfig(), pcfg, nil
	}
	return loadConfigs(jsonFolder, jsonFile, presetJsonFile)
}

// readOptional 文件不存在时返回空 JSON 对象
func readOptional(filePath string) ([]byte, error) {
	data, err := readFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return []byte("{}"), nil
	}
	return data, err
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- cfg
}

func parsePresetConfig(data []byte, resultChan chan<- *PresetConfig, errChan chan<- error) {
	pcfg := DefaultPresets()
	if err := json.Unmarshal(data, pcfg); err != nil {
		errChan <- fmt.Errorf("解析PresetConfig失败: %w", err)
		return
	}
	resultChan <- pcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	pcfgChan <-chan *PresetConfig,
	errChan <-chan error,
) (*Config, *PresetConfig, error) {
	var (
		cfg    *Config
		pcfg   *PresetConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case p := <-pcfgChan:
			pcfg = p
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || pcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, pcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) String() string { return time.Duration(d).String() }

/******************** 预设访问 ********************/

// GetBandPreset 按名称取分段预设
func (pc *PresetConfig) GetBandPreset(name string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := pc.Bands[name]
	return v, ok
}

func (pc *PresetConfig) SetBandPreset(name, value string) {
	mu.Lock()
	defer mu.Unlock()
	if pc.Bands == nil {
		pc.Bands = make(map[string]string)
	}
	pc.Bands[name] = value
}

// GetThresholdPreset 按名称取阈值预设
func (pc *PresetConfig) GetThresholdPreset(name string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := pc.Thresholds[name]
	return v, ok
}

func (pc *PresetConfig) SetThresholdPreset(name, value string) {
	mu.Lock()
	defer mu.Unlock()
	if pc.Thresholds == nil {
		pc.Thresholds = make(map[string]string)
	}
	pc.Thresholds[name] = value
}

// PresetNames 所有预设名称(分段和阈值的并集), 已排序
func (pc *PresetConfig) PresetNames() []string {
	mu.RLock()
	defer mu.RUnlock()
	seen := make(map[string]bool)
	var names []string
	for _, m := range []map[string]string{pc.Bands, pc.Thresholds} {
		for name := range m {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
