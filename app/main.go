package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobboard/app/notify"
	"github.com/umputun/jobboard/app/session"
	"github.com/umputun/jobboard/app/store"
	"github.com/umputun/jobboard/app/sysinfo"
	"github.com/umputun/jobboard/app/web"
)

const (
	defaultAdminUser     = "admin"
	defaultAdminPassword = "admin"
	defaultSessionSecret = "jobboard-dev-secret-change-me"
)

var opts struct {
	Listen      string `short:"l" long:"listen" env:"LISTEN" default:":3000" description:"listen address, PORT env overrides the port"`
	SiteURL     string `long:"site-url" env:"SITE_URL" default:"http://localhost:3000" description:"public site url"`
	WhatsAppURL string `long:"whatsapp-url" env:"WHATSAPP_URL" default:"https://chat.whatsapp.com/" description:"community group link"`
	PageSize    int    `long:"page-size" env:"PAGE_SIZE" default:"10" description:"jobs per page"`
	LoginBurst  int    `long:"login-burst" env:"LOGIN_BURST" default:"5" description:"login attempts per IP before throttling"`

	Admin struct {
		Username     string `long:"username" env:"USERNAME" default:"admin" description:"admin user name"`
		Password     string `long:"password" env:"PASSWORD" default:"admin" description:"admin password"`
		PasswordHash string `long:"password-hash" env:"PASSWORD_HASH" description:"bcrypt hash of admin password, overrides password"`
	} `group:"admin" namespace:"admin" env-namespace:"ADMIN"`

	Session struct {
		Secret  string        `long:"secret" env:"SECRET" default:"jobboard-dev-secret-change-me" description:"session cookie signing secret"`
		TTL     time.Duration `long:"ttl" env:"TTL" default:"24h" description:"session lifetime"`
		Redis   string        `long:"redis" env:"REDIS" description:"redis url for shared sessions, memory if empty"`
		MaxKeys int           `long:"max-keys" env:"MAX_KEYS" default:"10000" description:"max sessions kept in memory"`
		Prune   string        `long:"prune" env:"PRUNE" default:"@every 10m" description:"expired sessions cleanup schedule"`
	} `group:"session" namespace:"session" env-namespace:"SESSION"`

	Store struct {
		Type     string        `long:"type" env:"TYPE" choice:"memory" choice:"file" choice:"sqlite" choice:"redis" default:"file" description:"job store backend"`
		Conn     string        `long:"conn" env:"CONN" description:"file path, sqlite path or redis url, backend default if empty"`
		Prefix   string        `long:"prefix" env:"PREFIX" default:"jobboard" description:"redis key prefix"`
		Sample   bool          `long:"sample" env:"SAMPLE" description:"seed memory store with sample jobs"`
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"5" description:"connection attempts on start"`
		Delay    time.Duration `long:"delay" env:"DELAY" default:"1s" description:"initial delay between connection attempts"`
	} `group:"store" namespace:"store" env-namespace:"STORE"`

	Notify struct {
		Webhooks []string      `long:"webhook" env:"WEBHOOK" env-delim:"," description:"webhook url(s) to announce new jobs"`
		Headers  []string      `long:"header" env:"HEADER" env-delim:"," description:"extra webhook request headers, key:value"`
		Timeout  time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"webhook request timeout"`
		Template string        `long:"template" env:"TEMPLATE" description:"announcement text template"`
	} `group:"notify" namespace:"notify" env-namespace:"NOTIFY"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"logs/jobboard.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in MB"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max age of rotated files in days"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"compress rotated files"`
	} `group:"log" namespace:"log" env-namespace:"LOG"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`
}

var revision = "unknown"

// jobStore is a store backend with resources to release on exit
type jobStore interface {
	web.JobStore
	Close() error
}

func main() {
	fmt.Printf("jobboard %s\n", revision)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("failed to load .env: %v\n", err)
	}

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLog(opts.Dbg, setupLogs())

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

func run(ctx context.Context) error {
	warnInsecureDefaults()

	st, err := makeJobStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to make job store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("[WARN] failed to close job store: %v", err)
		}
	}()

	sessions, closeSessions, err := makeSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to make session manager: %w", err)
	}
	defer closeSessions()

	cfg := web.Config{
		Store:         st,
		Sessions:      sessions,
		SysInfo:       sysinfo.NewCollector(dataDir()),
		PageSize:      opts.PageSize,
		SiteURL:       opts.SiteURL,
		WhatsAppURL:   opts.WhatsAppURL,
		Version:       revision,
		LoginBurst:    opts.LoginBurst,
		PruneSchedule: opts.Session.Prune,
	}

	announcer, err := notify.NewAnnouncer(notify.Params{
		Webhooks: opts.Notify.Webhooks,
		Headers:  opts.Notify.Headers,
		Timeout:  opts.Notify.Timeout,
		SiteURL:  opts.SiteURL,
		Template: opts.Notify.Template,
	})
	if err != nil {
		return fmt.Errorf("failed to make announcer: %w", err)
	}
	if announcer != nil {
		log.Printf("[INFO] new jobs announced to %d webhook(s)", len(opts.Notify.Webhooks))
		cfg.Announcer = announcer
	}

	srv, err := web.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}
	return srv.Run(ctx, listenAddress(opts.Listen, os.Getenv("PORT")))
}

// makeJobStore creates the configured backend, sqlite and redis connections are retried with backoff
func makeJobStore(ctx context.Context) (jobStore, error) {
	conn := storeConn(opts.Store.Type, opts.Store.Conn)
	rptr := repeater.New(&strategy.Backoff{Repeats: max(opts.Store.Attempts, 1), Duration: opts.Store.Delay, Factor: 2, Jitter: true})

	switch opts.Store.Type {
	case "memory":
		if !opts.Store.Sample {
			log.Printf("[INFO] memory store, jobs are lost on restart")
			return store.NewMemory(), nil
		}
		jobs, err := store.SampleJobs()
		if err != nil {
			return nil, err
		}
		log.Printf("[INFO] memory store seeded with %d sample jobs", len(jobs))
		return store.NewMemory(jobs...), nil

	case "file":
		log.Printf("[INFO] file store %s", conn)
		return store.NewFile(conn)

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(conn), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		var res *store.SQLite
		err := rptr.Do(ctx, func() (e error) {
			res, e = store.NewSQLiteStore(ctx, conn)
			if e != nil {
				log.Printf("[WARN] sqlite %s not ready: %v", conn, e)
			}
			return e
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[INFO] sqlite store %s", conn)
		return res, nil

	case "redis":
		redisOpts, err := redis.ParseURL(conn)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		var res *store.Redis
		err = rptr.Do(ctx, func() (e error) {
			res, e = store.NewRedisStore(ctx, redisOpts, opts.Store.Prefix)
			if e != nil {
				log.Printf("[WARN] redis %s not ready: %v", redisOpts.Addr, e)
			}
			return e
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[INFO] redis store %s, prefix %s", redisOpts.Addr, opts.Store.Prefix)
		return res, nil
	}
	return nil, fmt.Errorf("unsupported store type %q", opts.Store.Type)
}

// makeSessions creates session manager on top of memory or redis session store
func makeSessions(ctx context.Context) (*session.Manager, func(), error) {
	auth := session.NewAuthenticator(session.Credentials{
		Username:     opts.Admin.Username,
		Password:     opts.Admin.Password,
		PasswordHash: opts.Admin.PasswordHash,
	})
	if !auth.HashedPassword() {
		log.Printf("[INFO] admin password compared as plain text, consider --admin.password-hash")
	}

	if opts.Session.Redis == "" {
		sessStore := session.NewMemoryStore(opts.Session.TTL, opts.Session.MaxKeys)
		return session.NewManager(auth, sessStore, opts.Session.Secret, opts.Session.TTL), func() {}, nil
	}

	redisOpts, err := redis.ParseURL(opts.Session.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid session redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to session redis %s: %w", redisOpts.Addr, err)
	}
	sessStore := session.NewRedisStore(client, opts.Store.Prefix)
	closer := func() {
		if err := sessStore.Close(); err != nil {
			log.Printf("[WARN] failed to close session redis: %v", err)
		}
	}
	log.Printf("[INFO] sessions kept in redis %s", redisOpts.Addr)
	return session.NewManager(auth, sessStore, opts.Session.Secret, opts.Session.TTL), closer, nil
}

// storeConn returns the connection string for the store type, with a default when not set
func storeConn(storeType, conn string) string {
	if conn != "" {
		return conn
	}
	switch storeType {
	case "file":
		return filepath.Join("data", "jobs.json")
	case "sqlite":
		return filepath.Join("data", "jobs.db")
	case "redis":
		return "redis://localhost:6379/0"
	}
	return ""
}

// dataDir returns directory reported in host status, the store location for file based backends
func dataDir() string {
	switch opts.Store.Type {
	case "file", "sqlite":
		return filepath.Dir(storeConn(opts.Store.Type, opts.Store.Conn))
	}
	return "."
}

// listenAddress replaces the port of listen with port if set, PORT env is the platform convention
func listenAddress(listen, port string) string {
	if port == "" {
		return listen
	}
	host := listen
	if idx := strings.LastIndex(listen, ":"); idx >= 0 {
		host = listen[:idx]
	}
	return host + ":" + port
}

func warnInsecureDefaults() {
	if opts.Admin.PasswordHash == "" && opts.Admin.Username == defaultAdminUser && opts.Admin.Password == defaultAdminPassword {
		log.Printf("[WARN] default admin credentials in use, set --admin.username and --admin.password-hash")
	}
	if opts.Session.Secret == defaultSessionSecret {
		log.Printf("[WARN] default session secret in use, set --session.secret")
	}
	if opts.Store.Type == "memory" && opts.Store.Sample {
		log.Printf("[WARN] memory store with sample jobs, not for production")
	}
}

// setupLogs returns writer for logs, lumberjack rotated file if enabled, stdout otherwise
func setupLogs() io.Writer {
	if !opts.Log.Enabled {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   opts.Log.Filename,
		MaxSize:    opts.Log.MaxSize,
		MaxBackups: opts.Log.MaxBackups,
		MaxAge:     opts.Log.MaxAge,
		Compress:   opts.Log.EnabledCompress,
	}
}

func setupLog(dbg bool, out io.Writer) {
	logOpts := []log.Option{log.Msec, log.LevelBraces, log.Out(out), log.Err(out)}
	if dbg {
		logOpts = append(logOpts, log.Debug, log.CallerFile, log.CallerFunc)
	}
	log.Setup(logOpts...)
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] %v received, shutting down", sig)
			cancel()
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
