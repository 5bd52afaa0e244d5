package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/company-revenue-lookup/internal/batch"
)

func loadBatchOptionsFromEnv() (batch.Options, error) {
	workers, err := envInt("WORKERS", batch.DefaultConcurrency)
	if err != nil {
		return batch.Options{}, err
	}
	delay, err := envDuration("BATCH_DELAY", batch.DefaultDelay)
	if err != nil {
		return batch.Options{}, err
	}
	maxRetries, err := envInt("MAX_RETRIES", 2)
	if err != nil {
		return batch.Options{}, err
	}
	requestTimeout, err := envDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return batch.Options{}, err
	}
	rateLimitRPS, err := envFloat("RATE_LIMIT_RPS", 0)
	if err != nil {
		return batch.Options{}, err
	}

	return batch.Options{
		Concurrency:    workers,
		Delay:          delay,
		MaxRetries:     maxRetries,
		RequestTimeout: requestTimeout,
		RateLimitRPS:   rateLimitRPS,
	}, nil
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return false, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
