package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Document store backends
const (
	DocstoreFirestore = "firestore"
	DocstorePostgres  = "postgres"
	DocstoreSQLite    = "sqlite"
	DocstoreMemory    = "memory"
)

// Identity token verifiers
const (
	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"
)

type Config struct {
	ServerPort string

	Docstore string

	FirebaseProjectID   string
	FirebaseClientEmail string
	FirebasePrivateKey  string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	SQLitePath string

	RedisURL     string
	NameCacheTTL time.Duration

	AuthMode  string
	JWTSecret string

	CommentPageSize int
	AnonymousName   string
	PanelIdleTTL    time.Duration

	WorkerEnabled bool
	WorkerCount   int

	PushEnabled bool
	ExpoPushURL string
}

// LoadConfig reads the environment after loading envFiles (".env" when none
// are given). Missing files are not an error.
func LoadConfig(envFiles ...string) (*Config, error) {
	err := godotenv.Load(envFiles...)
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	pageSize, err := strconv.Atoi(os.Getenv("COMMENT_PAGE_SIZE"))
	if err != nil || pageSize <= 0 {
		pageSize = 10
	}

	workerCount, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || workerCount <= 0 {
		workerCount = 2
	}

	workerEnabled := true
	if v, err := strconv.ParseBool(os.Getenv("WORKER_ENABLED")); err == nil {
		workerEnabled = v
	}

	pushEnabled, _ := strconv.ParseBool(os.Getenv("PUSH_ENABLED"))

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		Docstore: getEnv("DOCSTORE", DocstoreFirestore),

		FirebaseProjectID:   os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseClientEmail: os.Getenv("FIREBASE_CLIENT_EMAIL"),
		FirebasePrivateKey:  os.Getenv("FIREBASE_PRIVATE_KEY"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnv("DB_SSLMODE", "require"),

		SQLitePath: getEnv("SQLITE_PATH", "recipeshare.db"),

		RedisURL:     os.Getenv("REDIS_URL"),
		NameCacheTTL: getDuration("NAME_CACHE_TTL", 24*time.Hour),

		AuthMode:  getEnv("AUTH_MODE", AuthModeFirebase),
		JWTSecret: os.Getenv("JWT_SECRET"),

		CommentPageSize: pageSize,
		AnonymousName:   getEnv("ANONYMOUS_NAME", "Anonymous"),
		PanelIdleTTL:    getDuration("PANEL_IDLE_TTL", 30*time.Minute),

		WorkerEnabled: workerEnabled,
		WorkerCount:   workerCount,

		PushEnabled: pushEnabled,
		ExpoPushURL: os.Getenv("EXPO_PUSH_URL"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
