package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

var (
	instance evbus.Bus
	asyncBus *AsyncEventBus
	once     sync.Once
)

// Get returns the shared synchronous bus.
func Get() evbus.Bus {
	once.Do(func() {
		instance = New()
		asyncBus = NewAsyncEventBus(10)
		asyncBus.Start()
	})
	return instance
}

// GetAsync returns the shared asynchronous bus.
func GetAsync() *AsyncEventBus {
	once.Do(func() {
		instance = New()
		asyncBus = NewAsyncEventBus(10)
		asyncBus.Start()
	})
	return asyncBus
}

// New creates an independent synchronous bus.
func New() evbus.Bus {
	return evbus.New()
}

// Publish delivers an event to subscribers synchronously.
func Publish(topic string, args ...interface{}) {
	Get().Publish(topic, args...)
}

// PublishAsync queues an event for background delivery.
func PublishAsync(topic string, args ...interface{}) {
	GetAsync().PublishAsync(topic, args...)
}

// Subscribe registers a synchronous handler.
func Subscribe(topic string, fn interface{}) error {
	return Get().Subscribe(topic, fn)
}

// SubscribeAsync registers a handler on the asynchronous bus.
func SubscribeAsync(topic string, fn interface{}) error {
	return GetAsync().SubscribeAsync(topic, fn)
}

// Shutdown drains the async workers.
func Shutdown() {
	if asyncBus != nil {
		asyncBus.Stop()
	}
}
