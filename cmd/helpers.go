package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	"github.com/dayuer/officebot/internal/agent"
	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/config"
	"github.com/dayuer/officebot/internal/employees"
	"github.com/dayuer/officebot/internal/providers"
	"github.com/dayuer/officebot/internal/redis"
	"github.com/dayuer/officebot/internal/roles"
	"github.com/dayuer/officebot/internal/roster"
	"github.com/dayuer/officebot/internal/timeline"
	"github.com/dayuer/officebot/internal/utils"
)

const redisActivityCap = 500

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// makeProvider creates the OpenAI-compatible provider from the loaded config.
// Key and base URL fall back to the detected provider's env var and default.
func makeProvider(cfg config.Config) *providers.OpenAIProvider {
	return providers.NewOpenAIProvider(providers.Options{
		ProviderName: cfg.Provider.Name,
		APIKey:       cfg.Provider.APIKey,
		APIBase:      cfg.Provider.APIBase,
		Model:        cfg.Agent.Model,
		MaxTokens:    cfg.Agent.MaxTokens,
		Temperature:  cfg.Agent.Temperature,
		Timeout:      cfg.Provider.Timeout.Std(),
		MaxRetries:   cfg.Provider.MaxRetries,
	})
}

// connectRedis initializes the shared client when a URL is configured.
func connectRedis(cfg config.Config) bool {
	if cfg.Redis.URL == "" {
		return false
	}
	return redis.Init(redis.Config{URL: cfg.Redis.URL, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
}

// openStore opens the employee store on the configured backend, falling
// back to the file when Redis is asked for but not reachable.
func openStore(cfg config.Config) (*employees.Store, error) {
	path := utils.ExpandHome(cfg.Store.Path)
	backend, err := employees.OpenBackend(cfg.Store.Backend, path, cfg.Store.RedisKey)
	if backend == nil {
		return nil, err
	}
	if err != nil {
		log.Printf("[Store] %v", err)
	}
	return employees.NewStore(backend), nil
}

// openTimeline opens the SQLite journal, or returns nil when disabled.
func openTimeline(cfg config.Config) (*timeline.Service, error) {
	if !cfg.Timeline.Enabled {
		return nil, nil
	}
	path := utils.ExpandHome(cfg.Timeline.Path)
	if _, err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return timeline.NewService(path)
}

func loadLineup(cfg config.Config) (*roster.File, *roles.Registry, error) {
	f, err := roster.Load(utils.ExpandHome(cfg.Roster))
	if err != nil {
		return nil, nil, err
	}
	reg, err := f.Registry()
	if err != nil {
		return nil, nil, err
	}
	return f, reg, nil
}

// agentBase maps the shared loop settings onto agent.Config.
func agentBase(cfg config.Config) agent.Config {
	a := cfg.Agent
	return agent.Config{
		Model:         a.Model,
		MaxTokens:     a.MaxTokens,
		Temperature:   a.Temperature,
		PollInterval:  a.PollInterval.Std(),
		Cooldown:      a.Cooldown.Std(),
		TurnDelay:     a.TurnDelay.Std(),
		ErrorBackoff:  a.ErrorBackoff.Std(),
		MaxFailures:   a.MaxFailures,
		MemoryWindow:  a.MemoryWindow,
		ActivityLimit: a.ActivityLimit,
	}
}

// runtime is everything `run` wires together.
type runtime struct {
	cfg      config.Config
	bus      *bus.ChannelBus
	store    *employees.Store
	timeline *timeline.Service
	roster   *roster.Roster
}

func (rt *runtime) Close() {
	if rt.timeline != nil {
		if err := rt.timeline.Close(); err != nil {
			log.Printf("[Timeline] Close: %v", err)
		}
	}
	redis.Close()
}

func buildRuntime(cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}
	redisUp := connectRedis(cfg)

	var err error
	if rt.store, err = openStore(cfg); err != nil {
		rt.Close()
		return nil, err
	}
	if rt.timeline, err = openTimeline(cfg); err != nil {
		rt.Close()
		return nil, fmt.Errorf("opening timeline: %w", err)
	}

	lineup, reg, err := loadLineup(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.bus = bus.NewChannelBus(cfg.Channels...)
	rt.bus.Ensure(lineup.Channels()...)

	var journals agent.Journals
	if rt.timeline != nil {
		journals = append(journals, rt.timeline)
	}
	if redisUp {
		journals = append(journals, redis.ActivityJournal{Max: redisActivityCap})
	}
	deps := agent.Deps{
		Bus:      rt.bus,
		Provider: makeProvider(cfg),
		Roles:    reg,
		Store:    rt.store,
	}
	if len(journals) > 0 {
		deps.Journal = journals
	}

	if rt.roster, err = roster.New(lineup.Agents, agentBase(cfg), deps); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
