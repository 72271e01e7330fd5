package logger

import (
	"github.com/Brownie44l1/birdid/internal/config"

	"go.uber.org/zap"
)

func New(cfg *config.Config) (*zap.Logger, error) {
	switch cfg.Environment {
	case "production":
		return zap.NewProduction()
	case "test":
		return zap.NewExample(), nil
	default:
		return zap.NewDevelopment()
	}
}
