package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	appcontext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/current-see/solar_api/shared"
)

// RateLimitService applies fixed-window limits backed by Redis. Counters live
// under rl:<endpoint>:<identifier> and expire with the window, so there is no
// cleanup job and limits survive process restarts.
type RateLimitService struct {
	appcontext.DefaultService

	configs map[string]*RateLimitConfig
	mutex   sync.RWMutex

	redisSvc *RedisService
}

type RateLimitConfig struct {
	EndpointType string
	MaxRequests  int
	WindowSize   time.Duration
	IsActive     bool
}

type RateLimitInfo struct {
	Allowed   bool
	Remaining int
	ResetTime *time.Time
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *appcontext.Context) error {
	svc.configs = make(map[string]*RateLimitConfig)
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.initDefaultConfigs()
	return nil
}

func (svc *RateLimitService) initDefaultConfigs() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	svc.configs = map[string]*RateLimitConfig{
		"login": {
			EndpointType: "login",
			MaxRequests:  10,
			WindowSize:   15 * time.Minute,
			IsActive:     true,
		},
		"register": {
			EndpointType: "register",
			MaxRequests:  5,
			WindowSize:   15 * time.Minute,
			IsActive:     true,
		},
		"session_start": {
			EndpointType: "session_start",
			MaxRequests:  5,
			WindowSize:   15 * time.Minute,
			IsActive:     true,
		},
		"timer_start": {
			EndpointType: "timer_start",
			MaxRequests:  60,
			WindowSize:   time.Hour,
			IsActive:     true,
		},
		"unlock": {
			EndpointType: "unlock",
			MaxRequests:  30,
			WindowSize:   time.Hour,
			IsActive:     true,
		},
		"api_general": {
			EndpointType: "api_general",
			MaxRequests:  1000,
			WindowSize:   time.Hour,
			IsActive:     true,
		},
	}
}

// IsAllowed counts this request against the identifier's window and reports
// whether it fits under the limit.
func (svc *RateLimitService) IsAllowed(identifier, endpointType string) (bool, *RateLimitInfo, error) {
	svc.mutex.RLock()
	config, exists := svc.configs[endpointType]
	svc.mutex.RUnlock()

	if !exists || !config.IsActive {
		return true, &RateLimitInfo{Allowed: true, Remaining: -1}, nil
	}

	ctx := context.Background()
	key := fmt.Sprintf("rl:%s:%s", endpointType, identifier)

	count, err := svc.redisSvc.Increment(ctx, key)
	if err != nil {
		return false, nil, err
	}

	if count == 1 {
		if err := svc.redisSvc.Expire(ctx, key, config.WindowSize); err != nil {
			return false, nil, err
		}
	}

	ttl, err := svc.redisSvc.TTL(ctx, key)
	if err != nil || ttl < 0 {
		ttl = config.WindowSize
	}
	resetTime := time.Now().Add(ttl)

	remaining := config.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return count <= int64(config.MaxRequests), &RateLimitInfo{
		Allowed:   count <= int64(config.MaxRequests),
		Remaining: remaining,
		ResetTime: &resetTime,
	}, nil
}

// RateLimit creates a rate limiting middleware for a specific endpoint type.
func (svc *RateLimitService) RateLimit(endpointType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := svc.getIdentifier(c, endpointType)

		allowed, info, err := svc.IsAllowed(identifier, endpointType)
		if err != nil {
			// Fail open so a Redis outage never blocks traffic.
			log.Printf("Rate limit check error for %s (%s): %v", endpointType, identifier, err)
			return c.Next()
		}

		svc.addRateLimitHeaders(c, info)

		if !allowed {
			return svc.handleRateLimitExceeded(c, endpointType, info)
		}

		return c.Next()
	}
}

// IPRateLimit applies general rate limiting by IP address.
func (svc *RateLimitService) IPRateLimit() fiber.Handler {
	return svc.RateLimit("api_general")
}

func (svc *RateLimitService) getIdentifier(c *fiber.Ctx, endpointType string) string {
	switch endpointType {
	case "timer_start", "unlock":
		if userID, ok := c.Locals(shared.UserID).(string); ok && userID != "" {
			return userID
		}
		if sessionID, ok := c.Locals(shared.SessionID).(string); ok && sessionID != "" {
			return sessionID
		}
		return getClientIP(c)

	case "session_start":
		if deviceID := c.Get("X-Device-ID"); deviceID != "" {
			return deviceID
		}
		return getClientIP(c)

	default:
		return getClientIP(c)
	}
}

func (svc *RateLimitService) addRateLimitHeaders(c *fiber.Ctx, info *RateLimitInfo) {
	if info == nil {
		return
	}

	if info.Remaining >= 0 {
		c.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	}

	if info.ResetTime != nil {
		c.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

		retryAfter := int(time.Until(*info.ResetTime).Seconds())
		if !info.Allowed && retryAfter > 0 {
			c.Set("Retry-After", strconv.Itoa(retryAfter))
		}
	}
}

func (svc *RateLimitService) handleRateLimitExceeded(c *fiber.Ctx, endpointType string, info *RateLimitInfo) error {
	message := svc.getRateLimitMessage(endpointType)

	response := map[string]interface{}{
		"error":   "Rate limit exceeded",
		"message": message,
	}
	if info.ResetTime != nil {
		response["retry_after"] = int(time.Until(*info.ResetTime).Seconds())
	}

	return shared.ResponseJSON(c, http.StatusTooManyRequests, message, response)
}

func (svc *RateLimitService) getRateLimitMessage(endpointType string) string {
	messages := map[string]string{
		"login":         "Too many login attempts. Please try again later.",
		"register":      "Too many registration attempts. Please try again later.",
		"session_start": "Too many session creation attempts. Please try again later.",
		"timer_start":   "Too many timer starts. Please slow down.",
		"unlock":        "Too many unlock attempts. Please slow down.",
		"api_general":   "Too many requests. Please slow down.",
	}

	if message, exists := messages[endpointType]; exists {
		return message
	}

	return "Too many requests. Please try again later."
}

// ResetRateLimit clears the counter for one identifier and endpoint.
func (svc *RateLimitService) ResetRateLimit(identifier, endpointType string) error {
	key := fmt.Sprintf("rl:%s:%s", endpointType, identifier)
	return svc.redisSvc.Delete(context.Background(), key)
}

func getClientIP(c *fiber.Ctx) string {
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if ip != "" {
				return ip
			}
		}
	}

	realIP := c.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(c.Context().RemoteAddr().String())
	if err != nil {
		return c.Context().RemoteAddr().String()
	}

	return ip
}
