package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost           string
	DBPort           string
	DBUser           string
	DBPassword       string
	DBName           string
	ServerPort       string
	BlockerPolicy    string
	TimelinePageSize int
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	return &Config{
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "tasktrack_user"),
		DBPassword:       getEnv("DB_PASSWORD", "tasktrack_pass"),
		DBName:           getEnv("DB_NAME", "tasktrack_db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BlockerPolicy:    getEnv("BLOCKER_POLICY", "done_or_cancelled"),
		TimelinePageSize: getEnvInt("TIMELINE_PAGE_SIZE", 50),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}
