package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Requests.StrictTransitions)
	assert.Equal(t, 100, cfg.Requests.MaxPageSize)
	assert.Equal(t, 10, cfg.Requests.MaxAttachments)
	assert.EqualValues(t, 10<<20, cfg.Requests.MaxAttachmentBytes)
	assert.Equal(t, []string{"requestor", "administrator", "reviewer"}, cfg.Signup.AllowedRoles)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STRICT_STATUS_TRANSITIONS", true)
	v.Set("SIGNUP_ALLOWED_ROLES", " requestor , ")
	v.Set("JWT_EXPIRATION", "not-a-duration")
	v.Set("REQUEST_PAGE_SIZE_MAX", 0)

	cfg := fromViper(v)

	assert.True(t, cfg.Requests.StrictTransitions)
	assert.Equal(t, []string{"requestor"}, cfg.Signup.AllowedRoles)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 100, cfg.Requests.MaxPageSize)
}
