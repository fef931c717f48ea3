package config

const (
	defaultDataDir                = "~/.local/share/gifshelf/data"
	defaultUploadsDir             = "~/.local/share/gifshelf/uploads"
	defaultLogDir                 = "~/.local/share/gifshelf/logs"
	defaultAPIBind                = "127.0.0.1:7680"
	defaultAdminSecret            = "admin123"
	defaultPythonBinary           = "python3"
	defaultRendererScript         = "gif-generator.py"
	defaultRendererTimeoutSeconds = 120
	defaultRendererWorkers        = 1
	defaultRendererQueueSize      = 32
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			UploadsDir:  defaultUploadsDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
			AdminSecret: defaultAdminSecret,
		},
		Renderer: Renderer{
			PythonBinary:   defaultPythonBinary,
			ScriptPath:     defaultRendererScript,
			TimeoutSeconds: defaultRendererTimeoutSeconds,
			Workers:        defaultRendererWorkers,
			QueueSize:      defaultRendererQueueSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
