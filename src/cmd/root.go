package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"BandAnalyzer/src/config"
	"BandAnalyzer/src/storage"
	"BandAnalyzer/src/timeseries"
)

const envPrefix = "BANDS"

// App 命令共享的运行环境, 在 PersistentPreRunE 中初始化
type App struct {
	Config  *config.Config
	Presets *config.PresetConfig
	Logger  *storage.Logger
	Store   *timeseries.DatasetWrapper

	viper *viper.Viper
}

func NewApp() *App {
	return &App{viper: viper.New()}
}

// Execute 运行命令行, 返回进程退出码
func Execute() int {
	if err := RootCommand(NewApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// RootCommand creates and returns the root command
func RootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bands",
		Short:         "Zone band and threshold analyzer",
		Long:          "Bin hourly zone readings into bands, check them against threshold rules and summarise per zone.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, app); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	subcommands := []*cobra.Command{
		reportCommand(app),
		inspectCommand(app),
		watchCommand(app),
		mailCommand(app),
		daylightCommand(app),
		presetsCommand(app),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.initialize()
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		app.close()
	}

	return rootCmd
}

// setupFlags 全局参数, 优先级: 命令行 > 环境变量(BANDS_*) > 配置文件
func setupFlags(rootCmd *cobra.Command, app *App) error {
	flags := rootCmd.PersistentFlags()
	flags.String("config-dir", "./config", "Directory holding the JSON configuration files")
	flags.String("config", "config.json", "Configuration file name")
	flags.String("presets", "dataconfig.json", "Preset file name")
	flags.String("data-dir", "", "Directory of exported data files")
	flags.String("output-dir", "", "Directory for written reports")
	flags.String("sheet", "", "XLSX sheet to read, first sheet when empty")
	flags.String("encoding", "", "CSV encoding: auto, utf-8, utf-16, windows-1252, gbk")
	flags.Int("skip-rows", 0, "Rows to discard before the two header rows")
	flags.Int("year", 0, "Reference year attached to timestamps")
	flags.String("log", "", "Log file path")
	flags.String("log-level", "", "Log level: DEBUG, INFO, WARNING, ERROR")
	flags.BoolP("verbose", "v", false, "Also write log lines to stderr")

	v := app.viper
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// initialize 读取配置, 应用覆盖项并打开日志
func (a *App) initialize() error {
	v := a.viper
	cfg, presets, err := config.Load(v.GetString("config-dir"), v.GetString("config"), v.GetString("presets"))
	if err != nil {
		return err
	}
	a.applyOverrides(cfg)
	a.Config, a.Presets = cfg, presets

	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetLevel(storage.ParseLevel(cfg.LogLevel))
	if v.GetBool("verbose") {
		logger.SetConsole(os.Stderr)
	}
	if err := logger.CheckRotate(cfg); err != nil {
		logger.Warning(err.Error())
	}
	a.Logger = logger
	a.Store = &timeseries.DatasetWrapper{}
	return nil
}

func (a *App) applyOverrides(cfg *config.Config) {
	v := a.viper
	if v.IsSet("data-dir") {
		cfg.DataDir = v.GetString("data-dir")
	}
	if v.IsSet("output-dir") {
		cfg.OutputDir = v.GetString("output-dir")
	}
	if v.IsSet("sheet") {
		cfg.SheetName = v.GetString("sheet")
	}
	if v.IsSet("encoding") {
		cfg.Ingest.Encoding = v.GetString("encoding")
	}
	if v.IsSet("skip-rows") {
		cfg.Ingest.SkipRows = v.GetInt("skip-rows")
	}
	if v.IsSet("year") {
		cfg.Ingest.ReferenceYear = v.GetInt("year")
	}
	if v.IsSet("log") {
		cfg.LogName = v.GetString("log")
	}
	if v.IsSet("log-level") {
		cfg.LogLevel = v.GetString("log-level")
	}
}

func (a *App) close() {
	if a.Logger != nil {
		a.Logger.Close()
	}
}
