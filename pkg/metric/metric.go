package metric

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/config"
	"github.com/rs/zerolog/log"
)

const (
	SweepRows            = "policy_sweep_rows"
	SweepCandidates      = "policy_sweep_candidates"
	SweepPredictLatency  = "policy_sweep_predict_latency"
	SweepDayLatency      = "policy_sweep_day_latency"
	SweepSinkLatency     = "policy_sweep_sink_latency"
	SweepBaselineRevenue = "policy_sweep_baseline_revenue"
	SweepPolicyRevenue   = "policy_sweep_policy_revenue"
	SweepEmptyDays       = "policy_sweep_empty_days"
)

var (
	// it is safe to use one client from multiple goroutines simultaneously
	statsDClient statsd.ClientInterface = &statsd.NoOpClient{}
	// by default full sampling
	samplingRate = 1.0
	appName      = ""
	initialized  = false
	once         sync.Once
)

// Init initializes the metrics client. Until it is called every metric is
// dropped.
func Init(cfg config.Configs) {
	if initialized {
		log.Debug().Msgf("Metrics already initialized!")
		return
	}
	once.Do(func() {
		if cfg.AppMetricSamplingRate > 0 {
			samplingRate = cfg.AppMetricSamplingRate
		}
		appName = cfg.AppName
		globalTags := getGlobalTags(cfg)
		telegrafAddress := net.JoinHostPort(cfg.TelegrafHost, strconv.Itoa(cfg.TelegrafPort))

		client, err := statsd.New(
			telegrafAddress,
			statsd.WithTags(globalTags),
		)
		if err != nil {
			log.Error().Err(err).Msg("StatsD client initialization failed, metrics disabled")
			return
		}
		statsDClient = client
		log.Info().Msgf("Metrics client initialized with telegraf address - %s, global tags - %v, and "+
			"sampling rate - %f", telegrafAddress, globalTags, samplingRate)
		initialized = true
	})
}

// Close flushes buffered metrics.
func Close() {
	if err := statsDClient.Close(); err != nil {
		log.Warn().Err(err).Msg("Error occurred while closing statsd client")
	}
}

func getGlobalTags(cfg config.Configs) []string {
	if len(cfg.AppEnv) == 0 {
		log.Warn().Msg("APP_ENV is not set")
	}
	if len(cfg.AppName) == 0 {
		log.Warn().Msg("APP_NAME is not set")
	}
	return []string{
		TagAsString(TagEnv, cfg.AppEnv),
		TagAsString(TagService, cfg.AppName),
	}
}

// Timing sends timing information
func Timing(name string, value time.Duration, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := statsDClient.Timing(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd timing")
	}
}

// Count Increases metric counter by value
func Count(name string, value int64, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := statsDClient.Count(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd count")
	}
}

// Incr Increases metric counter by 1
func Incr(name string, tags []string) {
	Count(name, 1, tags)
}

func Gauge(name string, value float64, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := statsDClient.Gauge(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd gauge")
	}
}
