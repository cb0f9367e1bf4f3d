// Package metrics holds the Prometheus collectors of the bot and the HTTP endpoint serving them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "discordbot"

// Registry is private to the bot so tests and embedders do not collide with the global one.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// DiscordRequests counts outbound Discord calls by HTTP method and outcome kind.
	DiscordRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discord_requests_total",
		Help:      "Outbound Discord REST calls by method and outcome.",
	}, []string{"method", "outcome"})

	// PhrasesSent counts phrases accepted by Discord.
	PhrasesSent = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "phrases_sent_total",
		Help:      "Phrases successfully posted to Discord.",
	})

	// MessagesParsed counts channel messages saved by the parser.
	MessagesParsed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_parsed_total",
		Help:      "Discord messages appended to the parsed phrase file.",
	})

	// VocabularyReloads counts phrase file reads.
	VocabularyReloads = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vocabulary_reloads_total",
		Help:      "Times the vocabulary store re-read its source file.",
	})

	// LoopsActive tracks running send loops.
	LoopsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "send_loops_active",
		Help:      "Send loops currently running.",
	})

	// HandlerOutcomes counts Telegram handler executions.
	HandlerOutcomes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "telegram_handler_total",
		Help:      "Telegram handler executions by handler and outcome.",
	}, []string{"handler", "outcome"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
