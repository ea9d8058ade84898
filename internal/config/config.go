package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string            `yaml:"env" env:"ENV" env-default:"local"`
	HTTP        HTTPConfig        `yaml:"http"`
	Backend     BackendConfig     `yaml:"backend"`
	FileStorage FileStorageConfig `yaml:"file_storage"`
	Gallery     GalleryConfig     `yaml:"gallery"`
	Cache       CacheConfig       `yaml:"cache"`
	Redis       RedisConf         `yaml:"redis"`
}

type HTTPConfig struct {
	Host        string        `yaml:"host" env:"HTTP_HOST"`
	Port        string        `yaml:"port" env:"HTTP_PORT" env-default:"3000"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// BackendConfig адрес внешнего сервиса генерации изображений
type BackendConfig struct {
	BaseURL string        `yaml:"base_url" env:"BACKEND_BASE_URL" env-default:"http://127.0.0.1:8001"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type FileStorageConfig struct {
	BaseDir string `yaml:"base_dir" env:"FILE_STORAGE_BASE_DIR" env-default:"generated_images"`
}

type GalleryConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval" env-default:"2s"`
	ExpectedImages  int           `yaml:"expected_images" env-default:"3"`
	PublishDebounce time.Duration `yaml:"publish_debounce" env-default:"0s"`
}

type CacheConfig struct {
	ImageTTL        time.Duration `yaml:"image_ttl" env-default:"5m"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env-default:"10m"`
}

// RedisConf пустой RedisAddr отключает историю выбора
type RedisConf struct {
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redispassword" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
