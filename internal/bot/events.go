// internal/bot/events.go
package bot

import (
	"reflect"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
	"github.com/rovshanmuradov/pump-meteora/internal/migration"
)

// Event is something the runner confirmed on the ledger.
type Event interface {
	GetType() string
	GetTimestamp() time.Time
}

// ConfigCreatedEvent событие создания глобального конфига
type ConfigCreatedEvent struct {
	GlobalConfig solana.PublicKey `json:"global_config"`
	Signature    solana.Signature `json:"signature"`
	Timestamp    time.Time        `json:"timestamp"`
}

func (e ConfigCreatedEvent) GetType() string         { return "config_created" }
func (e ConfigCreatedEvent) GetTimestamp() time.Time { return e.Timestamp }

// CurveLaunchedEvent событие запуска нового токена
type CurveLaunchedEvent struct {
	Mint         solana.PublicKey `json:"mint"`
	BondingCurve solana.PublicKey `json:"bonding_curve"`
	Signature    solana.Signature `json:"signature"`
	Timestamp    time.Time        `json:"timestamp"`
}

func (e CurveLaunchedEvent) GetType() string         { return "curve_launched" }
func (e CurveLaunchedEvent) GetTimestamp() time.Time { return e.Timestamp }

// SwapExecutedEvent событие подтверждённого свопа
type SwapExecutedEvent struct {
	Mint      solana.PublicKey           `json:"mint"`
	Direction bondingcurve.SwapDirection `json:"direction"`
	AmountIn  uint64                     `json:"amount_in"`
	AmountOut uint64                     `json:"amount_out"`
	Signature solana.Signature           `json:"signature"`
	Timestamp time.Time                  `json:"timestamp"`
}

func (e SwapExecutedEvent) GetType() string         { return "swap_executed" }
func (e SwapExecutedEvent) GetTimestamp() time.Time { return e.Timestamp }

// LookupTableBuiltEvent событие создания таблицы адресов для миграции
type LookupTableBuiltEvent struct {
	Mint      solana.PublicKey `json:"mint"`
	Table     solana.PublicKey `json:"table"`
	Addresses int              `json:"addresses"`
	Signature solana.Signature `json:"signature"`
	Timestamp time.Time        `json:"timestamp"`
}

func (e LookupTableBuiltEvent) GetType() string         { return "lookup_table_built" }
func (e LookupTableBuiltEvent) GetTimestamp() time.Time { return e.Timestamp }

// MigrationFinishedEvent is published when the ledger reaches StateLocked,
// whether by this run or an earlier one.
type MigrationFinishedEvent struct {
	Mint          solana.PublicKey `json:"mint"`
	Pool          solana.PublicKey `json:"pool"`
	AlreadyLocked bool             `json:"already_locked"`
	Signature     solana.Signature `json:"signature"`
	Timestamp     time.Time        `json:"timestamp"`
}

func (e MigrationFinishedEvent) GetType() string         { return "migration_finished" }
func (e MigrationFinishedEvent) GetTimestamp() time.Time { return e.Timestamp }

// MigrationInterruptedEvent is published when a run stops before StateLocked.
type MigrationInterruptedEvent struct {
	Mint      solana.PublicKey `json:"mint"`
	Phase     migration.State  `json:"phase"`
	Err       error            `json:"-"`
	Timestamp time.Time        `json:"timestamp"`
}

func (e MigrationInterruptedEvent) GetType() string         { return "migration_interrupted" }
func (e MigrationInterruptedEvent) GetTimestamp() time.Time { return e.Timestamp }

// EventSubscriber интерфейс для подписчиков на события
type EventSubscriber interface {
	OnEvent(event Event)
	GetSubscribedEventTypes() []string
}

// SubscriberFunc adapts a function to EventSubscriber. An empty Types list
// subscribes to every event.
type SubscriberFunc struct {
	Types []string
	Fn    func(Event)
}

func (s SubscriberFunc) OnEvent(event Event)               { s.Fn(event) }
func (s SubscriberFunc) GetSubscribedEventTypes() []string { return s.Types }

// EventBus шина событий. Publish is synchronous: a command returns only after
// every subscriber has seen its events.
type EventBus struct {
	subscribers map[string][]EventSubscriber // event_type -> subscribers
	wildcard    []EventSubscriber
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewEventBus создает новую шину событий
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventSubscriber),
		logger:      logger.Named("event_bus"),
	}
}

// Subscribe подписывает подписчика на события
func (bus *EventBus) Subscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	types := subscriber.GetSubscribedEventTypes()
	if len(types) == 0 {
		bus.wildcard = append(bus.wildcard, subscriber)
		bus.logger.Debug("Subscriber registered",
			zap.String("event_type", "*"),
			zap.String("subscriber", reflect.TypeOf(subscriber).String()))
		return
	}
	for _, eventType := range types {
		bus.subscribers[eventType] = append(bus.subscribers[eventType], subscriber)
		bus.logger.Debug("Subscriber registered",
			zap.String("event_type", eventType),
			zap.String("subscriber", reflect.TypeOf(subscriber).String()))
	}
}

// Publish публикует событие
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	subscribers := make([]EventSubscriber, 0, len(bus.subscribers[event.GetType()])+len(bus.wildcard))
	subscribers = append(subscribers, bus.subscribers[event.GetType()]...)
	subscribers = append(subscribers, bus.wildcard...)
	bus.mu.RUnlock()

	bus.logger.Debug("Publishing event",
		zap.String("event_type", event.GetType()),
		zap.Int("subscribers", len(subscribers)))

	for _, subscriber := range subscribers {
		bus.notify(subscriber, event)
	}
}

func (bus *EventBus) notify(s EventSubscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error("Event subscriber panic",
				zap.String("event_type", event.GetType()),
				zap.String("subscriber", reflect.TypeOf(s).String()),
				zap.Any("panic", r))
		}
	}()
	s.OnEvent(event)
}

// GetSubscriberCount возвращает количество подписчиков для типа события
func (bus *EventBus) GetSubscriberCount(eventType string) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.subscribers[eventType]) + len(bus.wildcard)
}
