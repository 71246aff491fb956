package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/quadrant/featureflag"
	"github.com/aukilabs/quadrant/geometry"
	quadranthttp "github.com/aukilabs/quadrant/http"
	"github.com/aukilabs/quadrant/models"
	"github.com/aukilabs/quadrant/smoketest"
	qwebsocket "github.com/aukilabs/quadrant/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Quadrant version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "quadrant_info",
		Help:        "Quadrant information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"QUADRANT_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"QUADRANT_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"QUADRANT_PUBLIC_ENDPOINT"      help:"The public endpoint where this Quadrant server is reachable."`
	ServerID           string        `cli:""        env:"QUADRANT_SERVER_ID"            help:"The identifier prefixed to global space ids."`
	LogLevel           string        `cli:""        env:"QUADRANT_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"QUADRANT_LOG_INDENT"           help:"Indent logs."`
	HeartbeatInterval  time.Duration `cli:",hidden" env:"QUADRANT_HEARTBEAT_INTERVAL"   help:"Client heartbeat message interval."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"QUADRANT_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	LogSummaryInterval time.Duration `cli:",hidden" env:"QUADRANT_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	MaxQueryResults    int           `cli:""        env:"QUADRANT_MAX_QUERY_RESULTS"    help:"The maximum number of items returned by a query."`
	Space              spaceConfig   `cli:""        env:"-"                             help:"Space defaults."`
	Events             eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"QUADRANT_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

type spaceConfig struct {
	Backend        string  `cli:"" env:"QUADRANT_SPACE_BACKEND"         help:"Default space index (quadtree|rtree)."`
	CenterX        float64 `cli:"" env:"QUADRANT_SPACE_CENTER_X"        help:"Default space region center x."`
	CenterY        float64 `cli:"" env:"QUADRANT_SPACE_CENTER_Y"        help:"Default space region center y."`
	HalfWidth      float64 `cli:"" env:"QUADRANT_SPACE_HALF_WIDTH"      help:"Default space region half width."`
	HalfHeight     float64 `cli:"" env:"QUADRANT_SPACE_HALF_HEIGHT"     help:"Default space region half height."`
	Capacity       int     `cli:"" env:"QUADRANT_SPACE_CAPACITY"        help:"Default number of items a quadtree node holds before subdividing."`
	MinSize        float64 `cli:"" env:"QUADRANT_SPACE_MIN_SIZE"        help:"Default minimum quadtree node width and height."`
	StrictCapacity bool    `cli:"" env:"QUADRANT_SPACE_STRICT_CAPACITY" help:"Refuse insertions into full quadtree nodes that cannot subdivide."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"QUADRANT_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"QUADRANT_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"QUADRANT_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"QUADRANT_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		ServerID:           models.DefaultServerID,
		LogLevel:           logs.InfoLevel.String(),
		HeartbeatInterval:  time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		MaxQueryResults:    qwebsocket.DefaultMaxQueryResults,
		Space: spaceConfig{
			Backend:    string(models.BackendQuadtree),
			HalfWidth:  1000,
			HalfHeight: 1000,
			Capacity:   8,
			MinSize:    1,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Quadrant server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "quadrant",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	spaces := models.SpaceStore{
		ServerID: conf.ServerID,
		Defaults: spaceDefaults(conf.Space),
	}

	api := quadranthttp.API{
		Spaces:          &spaces,
		MaxQueryResults: conf.MaxQueryResults,
		FeatureFlags:    featureFlags,
	}

	router := api.Router()
	router.HandleFunc("/health", quadranthttp.HandleHealthCheck)
	router.Handle("/version", quadranthttp.HandleVersion(version))

	router.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Quadrant %s", version),
		Transport: transport,
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			logs.WithTag("from_endpoint", res.FromEndpoint).
				WithTag("to_endpoint", res.ToEndpoint).
				WithTag("latency_ms", res.LatencyMilliSec).
				WithTag("status", res.Status).
				WithTag("error", res.Error).
				Info("smoke test done")
			return nil
		},
	})).Methods(http.MethodPost)

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}
	router.Handle("/ready", quadranthttp.HandleReadyCheck(readinessCheck))

	router.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	router.Handle("/", websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh qwebsocket.Handler = &qwebsocket.RealtimeHandler{
				ClientHeartbeatInterval: conf.HeartbeatInterval,
				ClientIdleTimeout:       conf.ClientIdleTimeout,
				Spaces:                  &spaces,
				MaxQueryResults:         conf.MaxQueryResults,
				FeatureFlags:            featureFlags,
			}
			h := qwebsocket.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = qwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			qwebsocket.Handle(ctx, conn, h)
		},
	})

	var service http.ServeMux
	service.Handle("/", quadranthttp.HandleWithCORS(router))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", quadranthttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", quadranthttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("server_id", conf.ServerID).
		WithTag("space_backend", conf.Space.Backend).
		WithTag("feature_flags", featureFlags.List()).
		Info("starting quadrant server")

	quadranthttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			quadranthttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func spaceDefaults(conf spaceConfig) models.SpaceOptions {
	return models.SpaceOptions{
		Region: geometry.NewAABB(
			geometry.NewVector2(conf.CenterX, conf.CenterY),
			geometry.NewVector2(conf.HalfWidth, conf.HalfHeight),
		),
		Backend:        models.Backend(conf.Backend),
		Capacity:       conf.Capacity,
		MinSize:        conf.MinSize,
		StrictCapacity: conf.StrictCapacity,
	}
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.ServerID == "" {
		return errors.New("server id is empty")
	}

	if conf.MaxQueryResults < 1 {
		return errors.New("max query results must be greater than zero").
			WithTag("max_query_results", conf.MaxQueryResults)
	}

	// Builds a throwaway space to check that the defaults are usable.
	if _, err := models.NewSpace(0, spaceDefaults(conf.Space)); err != nil {
		return errors.New("invalid space defaults").Wrap(err)
	}

	return nil
}
