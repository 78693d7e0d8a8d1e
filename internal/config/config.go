package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ModelConfig describes one detection network.
type ModelConfig struct {
	ModelPath  string
	ConfigPath string  // optional, e.g. .pbtxt for TensorFlow graphs
	LabelsPath string  // optional, one label per line
	Format     string  // output layout: "ssd" or "yolov8"
	Confidence float32 // minimum confidence kept by the dual detector
	InputSize  int     // square network input size in pixels
}

type Config struct {
	Port          int
	Password      string // plain text or bcrypt hash
	SessionSecret string
	SessionTTL    time.Duration
	LogDirectory  string

	Sources    []SourceSpec
	SourceLoop bool    // restart file sources when they end
	DefaultFPS float64 // used when a source reports an unusable frame rate
	UDPPort    int
	UDPFPS     float64

	ClipDirectory   string
	ClipCodec       string // FourCC passed to the video writer
	ClipExtension   string // container extension without the dot
	RecordCooldown  time.Duration
	CooldownFrames  int  // overrides RecordCooldown when >= 0
	RecordAnnotated bool // write annotated frames to clips instead of raw ones

	GeneralModel  ModelConfig
	WeaponModel   ModelConfig
	WeaponClasses []string // weapon labels that count as a trigger; empty means all

	DBDriver       string // "sqlite" or "mysql"
	DBPath         string
	MySQLDSN       string
	EventQueueSize int
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Could not load .env file: %v", err)
	}
	return FromEnv()
}

// LoadFile reads the given env file before the process environment.
// Variables already set in the environment win.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, err
	}
	return FromEnv(), nil
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() *Config {
	sources, err := ParseSources(getEnv("SOURCES", "0"))
	if err != nil {
		log.Printf("Invalid SOURCES, falling back to webcam: %v", err)
		sources = []SourceSpec{{ID: "webcam", URI: "0", Kind: SourceDevice, Device: 0}}
	}

	return &Config{
		Port:          getEnvAsInt("PORT", 8080),
		Password:      getEnv("PASSWORD", "changeme"),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),

		Sources:    sources,
		SourceLoop: getEnvAsBool("SOURCE_LOOP", false),
		DefaultFPS: getEnvAsFloat("DEFAULT_FPS", 20),
		UDPPort:    getEnvAsInt("UDP_PORT", 9000),
		UDPFPS:     getEnvAsFloat("UDP_FPS", 10),

		ClipDirectory:   getEnv("CLIP_DIR", filepath.Join(".", "detected_clips")),
		ClipCodec:       getEnv("CLIP_CODEC", "mp4v"),
		ClipExtension:   strings.TrimPrefix(getEnv("CLIP_EXT", "mp4"), "."),
		RecordCooldown:  getEnvAsDuration("RECORD_COOLDOWN", 2*time.Second),
		CooldownFrames:  getEnvAsInt("COOLDOWN_FRAMES", -1),
		RecordAnnotated: getEnvAsBool("RECORD_ANNOTATED", true),

		GeneralModel: ModelConfig{
			ModelPath:  getEnv("GENERAL_MODEL_PATH", filepath.Join(".", "models", "yolov8n.onnx")),
			ConfigPath: getEnv("GENERAL_CONFIG_PATH", ""),
			LabelsPath: getEnv("GENERAL_LABELS", ""),
			Format:     getEnv("GENERAL_FORMAT", "yolov8"),
			Confidence: float32(getEnvAsFloat("GENERAL_CONFIDENCE", 0.5)),
			InputSize:  getEnvAsInt("GENERAL_INPUT_SIZE", 640),
		},
		WeaponModel: ModelConfig{
			ModelPath:  getEnv("WEAPON_MODEL_PATH", filepath.Join(".", "models", "weapon.onnx")),
			ConfigPath: getEnv("WEAPON_CONFIG_PATH", ""),
			LabelsPath: getEnv("WEAPON_LABELS", ""),
			Format:     getEnv("WEAPON_FORMAT", "yolov8"),
			Confidence: float32(getEnvAsFloat("WEAPON_CONFIDENCE", 0.5)),
			InputSize:  getEnvAsInt("WEAPON_INPUT_SIZE", 640),
		},
		WeaponClasses: getEnvAsList("WEAPON_CLASSES"),

		DBDriver:       getEnv("DB_DRIVER", "sqlite"),
		DBPath:         getEnv("DB_PATH", filepath.Join(".", "data", "detections.db")),
		MySQLDSN:       getEnv("MYSQL_DSN", ""),
		EventQueueSize: getEnvAsInt("EVENT_QUEUE_SIZE", 256),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
