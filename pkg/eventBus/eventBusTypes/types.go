package eventBusTypes

import (
	"context"
	"sync"

	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore"
)

const (
	Event_DomainEventsEmitted = "domainEventsEmitted"
	Event_JobTransition       = "jobTransition"
	Event_BlockProcessed      = "blockProcessed"
)

type Event struct {
	Name string
	Data any
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

// GetAll returns a snapshot of the current consumers.
func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	consumers := make([]*Consumer, len(cl.consumers))
	copy(consumers, cl.consumers)
	return consumers
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}

// DomainEventsEmittedData is published once per processed transaction.
type DomainEventsEmittedData struct {
	BlockNumber     uint64
	TransactionHash string
	Status          jobStore.TransactionStatus
	Events          []domainEvents.DomainEvent
	Errors          []*domainEvents.ProcessingError
	// Inserted is the number of events that were not already stored.
	Inserted int64
}

type JobTransitionData struct {
	JobId    uint64
	JobType  jobStore.JobType
	WorkerId string
	From     jobStore.JobStatus
	To       jobStore.JobStatus
	Error    string
}

type BlockProcessedData struct {
	BlockNumber uint64
	BlockHash   string
	EventsRoot  string
	Block       *jobStore.BlockProcessing
}
