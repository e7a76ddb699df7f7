package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
)

const (
	DefaultFeeBPS          = 250
	DefaultGracePeriodSecs = 600
)

// PlatformConfig отражает единственную строку platform_config (id = 1).
type PlatformConfig struct {
	FeeBPS          int        `db:"fee_bps" json:"fee_bps"`
	GracePeriodSecs int64      `db:"grace_period_secs" json:"grace_period_secs"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	UpdatedBy       *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
}

// DefaultPlatformConfig используется, пока строку никто не записал.
func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		FeeBPS:          DefaultFeeBPS,
		GracePeriodSecs: DefaultGracePeriodSecs,
	}
}

func (c PlatformConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSecs) * time.Second
}

func (c PlatformConfig) Validate() error {
	if c.FeeBPS < 0 || c.FeeBPS > valueobject.MaxFeeBPS {
		return apperror.New(apperror.ErrCodeValidation, "комиссия должна быть от 0 до 10000 б.п.")
	}
	if c.GracePeriodSecs < 0 {
		return apperror.New(apperror.ErrCodeValidation, "льготный период не может быть отрицательным")
	}
	return nil
}
