package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AppConfig struct {
	ListenAddr    string
	RiskThreshold decimal.Decimal
	LYDPerUSD     decimal.Decimal
}

func LoadConfigDB() (*DBConfig, error) {
	err := godotenv.Load(filepath.Join("config.env"))
	if err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(os.Getenv("DB_MAX_OPEN_CONNS"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdle, err := strconv.Atoi(os.Getenv("DB_MAX_IDLE_CONNS"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	return &DBConfig{
		Host:         os.Getenv("DB_HOST"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
	}, nil
}

// LoadConfigRedis returns nil config (not an error) when REDIS_ADDR is unset,
// in which case price lookups go straight to the database.
func LoadConfigRedis() (*RedisConfig, error) {
	_ = godotenv.Load(filepath.Join("config.env"))

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}

	db := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		db = parsed
	}

	return &RedisConfig{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func LoadConfigApp() (*AppConfig, error) {
	_ = godotenv.Load(filepath.Join("config.env"))

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	threshold := decimal.NewFromInt(75)
	if raw := os.Getenv("RISK_THRESHOLD"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid RISK_THRESHOLD: %w", err)
		}
		threshold = parsed
	}

	rate := decimal.NewFromFloat(4.85)
	if raw := os.Getenv("LYD_PER_USD"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LYD_PER_USD: %w", err)
		}
		rate = parsed
	}

	return &AppConfig{
		ListenAddr:    addr,
		RiskThreshold: threshold,
		LYDPerUSD:     rate,
	}, nil
}
