// Package demo registers the sample signup service graph and drives traffic through it.
package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/SuperID/nanoservices/pkg/dispatcher"
	"github.com/SuperID/nanoservices/pkg/traceid"
)

const logPrefix = "demo:demo"

// Service names.
const (
	ServiceSignup          = "api.superid.signup"
	ServiceUserGet         = "user.get"
	ServiceUserCreate      = "user.create"
	ServiceUserGetOrCreate = "user.getOrCreate"
	ServiceAccessToken     = "user.generateNewAccessToken"
	ServiceFaceCompare     = "face.compare"
	ServiceFaceUpload      = "face.upload"
)

// ErrCompareFailed is returned by face.compare when the score is rejected.
var ErrCompareFailed = errors.New("compare fail")

const tokenLength = 20

// Options tunes the simulated services. Nil decision funcs flip a coin.
type Options struct {
	// Latency is the upper bound of the simulated work in leaf services. Zero disables it.
	Latency time.Duration
	// Clock drives latency and user IDs. Nil uses the real clock.
	Clock clockz.Clock
	// UserExists decides whether user.get finds the phone.
	UserExists func(phone interface{}) bool
	// CompareOK decides whether face.compare accepts the face.
	CompareOK func() bool
}

type services struct {
	opts Options
}

// Register adds every service of the signup graph to m.
func Register(m *dispatcher.Manager, opts Options) error {
	if opts.Clock == nil {
		opts.Clock = clockz.RealClock
	}
	if opts.UserExists == nil {
		opts.UserExists = func(interface{}) bool { return coin() }
	}
	if opts.CompareOK == nil {
		opts.CompareOK = coin
	}
	s := &services{opts: opts}

	handlers := []struct {
		name    string
		handler dispatcher.Handler
	}{
		{ServiceSignup, s.signup},
		{ServiceUserGet, s.userGet},
		{ServiceUserCreate, s.userCreate},
		{ServiceUserGetOrCreate, s.userGetOrCreate},
		{ServiceAccessToken, s.accessToken},
		{ServiceFaceCompare, s.faceCompare},
		{ServiceFaceUpload, s.faceUpload},
	}
	for _, h := range handlers {
		if err := m.Register(h.name, h.handler); err != nil {
			return fmt.Errorf("%s - failed to register %s: %w", logPrefix, h.name, err)
		}
	}
	return nil
}

func coin() bool {
	return rand.IntN(2) == 0
}

// work simulates a slow backend.
func (s *services) work() {
	if s.opts.Latency <= 0 {
		return
	}
	<-s.opts.Clock.After(rand.N(s.opts.Latency))
}

func (s *services) newUser(phone interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":    s.opts.Clock.Now().UnixMilli(),
		"phone": phone,
		"name":  "demo",
	}
}

func (s *services) signup(ctx *dispatcher.Context) error {
	phone := ctx.Params().Value("phone")
	ctx.Debug("start signup new user, phone=%v", phone)

	res, err := ctx.Call(ServiceUserGetOrCreate, map[string]interface{}{"phone": phone}, nil).Result()
	if err != nil {
		return err
	}
	user, _ := res.(map[string]interface{})
	ctx.Debug("user id=%v", user["id"])

	res, err = ctx.Call(ServiceFaceCompare, map[string]interface{}{
		"user": user,
		"face": ctx.Params().Value("face"),
	}, nil).Result()
	if err != nil {
		return err
	}
	compared, _ := res.(map[string]interface{})

	ctx.Debug("cool, the last step, generate new access token")
	token, err := ctx.Call(ServiceAccessToken, map[string]interface{}{"user": user}, nil).Result()
	if err != nil {
		return err
	}

	ctx.Result(map[string]interface{}{
		"phone":   user["phone"],
		"success": true,
		"score":   compared["score"],
		"token":   token,
	})
	return nil
}

func (s *services) userGet(ctx *dispatcher.Context) error {
	s.work()
	phone := ctx.Params().Value("phone")
	if !s.opts.UserExists(phone) {
		ctx.Debug("oh no, user does not exists")
		ctx.Result(nil)
		return nil
	}
	ctx.Result(s.newUser(phone))
	return nil
}

func (s *services) userCreate(ctx *dispatcher.Context) error {
	s.work()
	ctx.Result(s.newUser(ctx.Params().Value("phone")))
	return nil
}

func (s *services) userGetOrCreate(ctx *dispatcher.Context) error {
	params := ctx.Params().Map()
	ctx.Call(ServiceUserGet, params, func(user interface{}, err error) {
		if err != nil {
			ctx.Error(err)
			return
		}
		if user != nil {
			ctx.Result(user)
			return
		}
		ctx.Debug("ok, let me create a new user")
		ctx.Next(ServiceUserCreate, params)
	})
	return nil
}

func (s *services) accessToken(ctx *dispatcher.Context) error {
	s.work()
	token, err := traceid.New(tokenLength)
	if err != nil {
		return err
	}
	ctx.Result(token)
	return nil
}

func (s *services) faceCompare(ctx *dispatcher.Context) error {
	ctx.Debug("upload image firstly, it may take a minute")
	res, err := ctx.Call(ServiceFaceUpload, map[string]interface{}{"face": ctx.Params().Value("face")}, nil).Result()
	if err != nil {
		return err
	}
	face, _ := res.(map[string]interface{})

	if !s.opts.CompareOK() {
		ctx.Debug("compare fail, maybe set a higher minScore to avoid this problem")
		return ErrCompareFailed
	}
	ctx.Result(map[string]interface{}{
		"uuid":  face["uuid"],
		"score": rand.Float64() * 100,
	})
	return nil
}

func (s *services) faceUpload(ctx *dispatcher.Context) error {
	s.work()
	uuid, err := traceid.New(tokenLength)
	if err != nil {
		return err
	}
	ctx.Result(map[string]interface{}{"uuid": uuid})
	return nil
}

// SignupParams returns the parameters of one simulated signup request.
func SignupParams() map[string]interface{} {
	face, err := traceid.New(tokenLength)
	if err != nil {
		face = "unknown"
	}
	return map[string]interface{}{
		"phone": 123456,
		"face":  face + ".jpg",
	}
}

// Round issues two concurrent signups from one root context, so both share a root
// request ID, and returns their futures.
func Round(m *dispatcher.Manager) []*dispatcher.Future {
	root := m.NewContext(dispatcher.ContextOptions{})
	futures := make([]*dispatcher.Future, 0, 2)
	for i := 0; i < 2; i++ {
		futures = append(futures, root.Call(ServiceSignup, SignupParams(), func(result interface{}, err error) {
			if err != nil {
				slog.Info(fmt.Sprintf("%s - signup under %s failed: %v", logPrefix, root.RequestID, err))
				return
			}
			slog.Debug(fmt.Sprintf("%s - signup under %s ok: %v", logPrefix, root.RequestID, result))
		}))
	}
	return futures
}

// Run issues a Round every interval until ctx is done.
func Run(ctx context.Context, m *dispatcher.Manager, interval time.Duration, clock clockz.Clock) error {
	if interval <= 0 {
		return fmt.Errorf("%s - interval must be positive, got %s", logPrefix, interval)
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	slog.Info(fmt.Sprintf("%s - Sending signup traffic every %s", logPrefix, interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
			Round(m)
		}
	}
}
