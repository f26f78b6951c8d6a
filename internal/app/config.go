package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr      string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LogLevel      string
	LogFormat     string

	UploadDir string
	ChunkDir  string
	ClipDir   string

	ChunkDurationSec   int
	MaxUploadBytes     int64
	QueueHighWatermark int64

	DetectorURL         string
	DetectorTimeout     time.Duration
	ConfidenceThreshold float64
	DefaultFPS          int
	BurstFPS            int

	NvidiaSMIPath string
	FFMPEGPath    string
	FFProbePath   string

	GPUPollInterval  time.Duration
	DequeueTimeout   time.Duration
	DispatchBackoff  time.Duration
	CancelGrace      time.Duration
	DebounceInterval time.Duration
	ClipPaddingSec   int

	JWTSecret          string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DB", "visionstream"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       int(getEnvInt64("REDIS_DB", 0)),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),

		UploadDir: getEnv("UPLOAD_DIR", "data/uploads"),
		ChunkDir:  getEnv("CHUNK_DIR", "data/chunks"),
		ClipDir:   getEnv("CLIP_DIR", "data/clips"),

		ChunkDurationSec:   int(getEnvInt64("CHUNK_DURATION_SEC", 30)),
		MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", 10<<30),
		QueueHighWatermark: getEnvInt64("QUEUE_HIGH_WATERMARK", 1000),

		DetectorURL:         getEnv("DETECTOR_URL", "http://localhost:9090"),
		DetectorTimeout:     getEnvDuration("DETECTOR_TIMEOUT", 30*time.Second),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.5),
		DefaultFPS:          int(getEnvInt64("DEFAULT_FPS", 5)),
		BurstFPS:            int(getEnvInt64("BURST_FPS", 15)),

		NvidiaSMIPath: getEnv("NVIDIA_SMI_PATH", "nvidia-smi"),
		FFMPEGPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath:   getEnv("FFPROBE_PATH", "ffprobe"),

		GPUPollInterval:  getEnvDuration("GPU_POLL_INTERVAL", 10*time.Second),
		DequeueTimeout:   getEnvDuration("DEQUEUE_TIMEOUT", 5*time.Second),
		DispatchBackoff:  getEnvDuration("DISPATCH_BACKOFF", 200*time.Millisecond),
		CancelGrace:      getEnvDuration("CANCEL_GRACE", 30*time.Second),
		DebounceInterval: getEnvDuration("DEBOUNCE_INTERVAL", 10*time.Second),
		ClipPaddingSec:   int(getEnvInt64("CLIP_PADDING_SEC", 5)),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:     int(getEnvInt64("RATE_LIMIT_BURST", 100)),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnvList splits a comma-separated env value; empty means "allow all".
func getEnvList(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
