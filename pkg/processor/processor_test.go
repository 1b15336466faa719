package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/internal/metrics"
	"github.com/Layr-Labs/sidecar-events/internal/tests"
	"github.com/Layr-Labs/sidecar-events/internal/tests/chainFixtures"
	"github.com/Layr-Labs/sidecar-events/internal/tests/sqlite"
	"github.com/Layr-Labs/sidecar-events/pkg/clients/ethereum"
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/decoder"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/eventBus"
	"github.com/Layr-Labs/sidecar-events/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/sidecar-events/pkg/eventStore"
	"github.com/Layr-Labs/sidecar-events/pkg/eventStore/gormEventStore"
	"github.com/Layr-Labs/sidecar-events/pkg/fetcher"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore/gormJobStore"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"github.com/Layr-Labs/sidecar-events/pkg/transformEngine"
	"github.com/Layr-Labs/sidecar-events/pkg/transformRules"
	"github.com/Layr-Labs/sidecar-events/pkg/transformers"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	tokenA   = chainFixtures.Address("tokenA")
	tokenB   = chainFixtures.Address("tokenB")
	poolV2   = chainFixtures.Address("poolV2")
	user     = chainFixtures.Address("user")
	stranger = chainFixtures.Address("stranger")
)

type staticBlockSource struct {
	blocks map[uint64]*fetcher.FetchedBlock
}

func (s *staticBlockSource) FetchBlock(ctx context.Context, blockNumber uint64) (*fetcher.FetchedBlock, error) {
	b, ok := s.blocks[blockNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %d", fetcher.ErrBlockNotFound, blockNumber)
	}
	return b, nil
}

type flakyEventStore struct {
	eventStore.EventStore
	failing bool
}

func (f *flakyEventStore) UpsertEvents(events []domainEvents.DomainEvent) (int64, error) {
	if f.failing {
		return 0, errors.New("database is unavailable")
	}
	return f.EventStore.UpsertEvents(events)
}

type fixture struct {
	processor  *Processor
	jobStore   *gormJobStore.GormJobStore
	eventStore *flakyEventStore
	source     *staticBlockSource
	bus        *eventBus.EventBus
	cfg        *config.Config
	grm        *gorm.DB
	l          *zap.Logger
}

func swapSpec(label string) *chainFixtures.TxSpec {
	return &chainFixtures.TxSpec{
		Label: label,
		From:  user,
		To:    poolV2,
		Logs: []*ethereum.EthereumEventLog{
			chainFixtures.TransferLog(tokenA, user, poolV2, 100, 0),
			chainFixtures.V2SwapLog(poolV2, user, user, 100, 0, 0, 42, 1),
		},
	}
}

func testBlock(blockNumber uint64) *fetcher.FetchedBlock {
	return chainFixtures.Block(blockNumber,
		swapSpec(fmt.Sprintf("swap-%d", blockNumber)),
		&chainFixtures.TxSpec{Label: fmt.Sprintf("plain-%d", blockNumber), From: user, To: stranger, Value: 5},
		&chainFixtures.TxSpec{Label: fmt.Sprintf("reverted-%d", blockNumber), From: user, To: poolV2, Failed: true},
	)
}

func txHash(label string) string {
	return strings.ToLower(chainFixtures.TxHash(label))
}

func setup(t *testing.T) *fixture {
	l := tests.GetTestLogger()
	cfg := tests.GetConfig()
	grm, err := sqlite.GetMigratedInMemoryDatabase(l)
	if err != nil {
		t.Fatal(err)
	}

	catalog := contractStore.NewStaticCatalog([]*contractStore.Contract{
		{ContractAddress: tokenA, TransformerRole: contractStore.ContractRole_Token},
		{ContractAddress: tokenB, TransformerRole: contractStore.ContractRole_Token},
		{ContractAddress: poolV2, TransformerRole: contractStore.ContractRole_PoolV2, Token0: tokenA, Token1: tokenB},
	}, l)
	registry, err := transformers.NewDefaultRegistry(l)
	if err != nil {
		t.Fatal(err)
	}
	rules, err := transformRules.LoadDefaultRuleSet()
	if err != nil {
		t.Fatal(err)
	}

	source := &staticBlockSource{blocks: map[uint64]*fetcher.FetchedBlock{}}
	for n := uint64(100); n <= 102; n++ {
		source.blocks[n] = testBlock(n)
	}

	js := gormJobStore.NewGormJobStore(grm, cfg.WorkerConfig.MaxRetries, l)
	es := &flakyEventStore{EventStore: gormEventStore.NewGormEventStore(grm, l)}
	bus := eventBus.NewEventBus(l)
	p := NewProcessor(
		source,
		decoder.NewBlockDecoder(decoder.NewTransactionDecoder(catalog, l), l),
		transformEngine.NewEngine(registry, catalog, rules, l),
		js,
		es,
		bus,
		metrics.NewNoopMetricsSink(),
		cfg,
		l,
	)
	return &fixture{processor: p, jobStore: js, eventStore: es, source: source, bus: bus, cfg: cfg, grm: grm, l: l}
}

func (f *fixture) createJob(t *testing.T, job *jobStore.ProcessingJob) *jobStore.ProcessingJob {
	created, err := f.jobStore.CreateJob(job)
	assert.Nil(t, err)
	return created
}

func Test_ProcessBlockJob(t *testing.T) {
	f := setup(t)
	consumer := &eventBusTypes.Consumer{Id: "test", Channel: make(chan *eventBusTypes.Event, 100), Context: context.Background()}
	f.bus.Subscribe(consumer)

	newJob, err := jobStore.NewBlockJob(100, nil)
	assert.Nil(t, err)
	job := f.createJob(t, newJob)
	assert.Nil(t, f.processor.ProcessJob(context.Background(), job))

	block, err := f.jobStore.GetBlockProcessing(100)
	assert.Nil(t, err)
	assert.Equal(t, 3, block.TransactionCount)
	assert.Equal(t, 3, block.CompletedCount)
	assert.True(t, block.CountersConsistent())
	assert.True(t, block.IsDone())

	ids, err := f.eventStore.ListContentIdsForBlock(100)
	assert.Nil(t, err)
	assert.Len(t, ids, 2)
	root, err := ComputeEventsRoot(100, ids)
	assert.Nil(t, err)
	assert.Equal(t, root, block.EventsRoot)

	swapTx, err := f.jobStore.GetTransactionProcessing(txHash("swap-100"))
	assert.Nil(t, err)
	assert.Equal(t, jobStore.TransactionStatus_Completed, swapTx.Status)
	assert.Equal(t, 2, swapTx.LogsProcessed)
	assert.Equal(t, 2, swapTx.EventsGenerated)
	assert.Equal(t, uint64(21000), swapTx.GasUsed)
	assert.Equal(t, "1000000000", swapTx.GasPrice)

	events, err := f.eventStore.GetEventsForTransaction(txHash("swap-100"))
	assert.Nil(t, err)
	assert.Len(t, events, 2)
	transfer := events[0].(*domainEvents.Transfer)
	assert.Equal(t, domainEvents.TransferClassification_Swap, transfer.Classification)
	assert.Equal(t, events[1].GetMetadata().ContentId, transfer.ParentId)

	emitted := 0
	blocks := 0
	for len(consumer.Channel) > 0 {
		switch (<-consumer.Channel).Name {
		case eventBusTypes.Event_DomainEventsEmitted:
			emitted++
		case eventBusTypes.Event_BlockProcessed:
			blocks++
		}
	}
	assert.Equal(t, 3, emitted)
	assert.Equal(t, 1, blocks)

	t.Run("Should skip completed transactions when the block is processed again", func(t *testing.T) {
		result, err := f.processor.ProcessBlock(context.Background(), 100)
		assert.Nil(t, err)
		assert.Equal(t, 3, result.Skipped)
		assert.Equal(t, 0, result.Processed)
		assert.Equal(t, block.EventsRoot, result.EventsRoot)

		again, err := f.eventStore.ListContentIdsForBlock(100)
		assert.Nil(t, err)
		assert.Equal(t, ids, again)
	})
}

func Test_ProcessBlockErrors(t *testing.T) {
	f := setup(t)

	t.Run("Should return a missing block as an error", func(t *testing.T) {
		_, err := f.processor.ProcessBlock(context.Background(), 999)
		assert.True(t, errors.Is(err, fetcher.ErrBlockNotFound))
	})
	t.Run("Should fail on an inconsistent block before touching the ledger", func(t *testing.T) {
		broken := testBlock(200)
		broken.Receipts = broken.Receipts[:2]
		f.source.blocks[200] = broken

		_, err := f.processor.ProcessBlock(context.Background(), 200)
		var integrityErr *decoder.SourceIntegrityError
		assert.True(t, errors.As(err, &integrityErr))

		_, err = f.jobStore.GetBlockProcessing(200)
		assert.True(t, errors.Is(err, jobStore.ErrBlockNotFound))
	})
	t.Run("Should fail an unknown job type", func(t *testing.T) {
		err := f.processor.ProcessJob(context.Background(), &jobStore.ProcessingJob{JobType: "snapshot", Payload: "{}"})
		assert.True(t, errors.Is(err, jobStore.ErrUnknownJobType))
	})
}

func Test_ProcessBlockRange(t *testing.T) {
	f := setup(t)

	t.Run("Should process every block in order", func(t *testing.T) {
		seen := make([]uint64, 0)
		results, err := f.processor.ProcessBlockRange(context.Background(), 100, 102, func(r *BlockResult) {
			seen = append(seen, r.BlockNumber)
		})
		assert.Nil(t, err)
		assert.Len(t, results, 3)
		assert.Equal(t, []uint64{100, 101, 102}, seen)
	})
	t.Run("Should stop at the first failing block", func(t *testing.T) {
		newJob, err := jobStore.NewBlockRangeJob(101, 104, nil)
		assert.Nil(t, err)
		job := f.createJob(t, newJob)
		err = f.processor.ProcessJob(context.Background(), job)
		assert.True(t, errors.Is(err, fetcher.ErrBlockNotFound))
	})
}

func Test_ProcessTransactionsJob(t *testing.T) {
	f := setup(t)

	newJob, err := jobStore.NewTransactionsJob(100, []string{chainFixtures.TxHash("swap-100")}, nil)
	assert.Nil(t, err)
	job := f.createJob(t, newJob)
	assert.Nil(t, f.processor.ProcessJob(context.Background(), job))

	block, err := f.jobStore.GetBlockProcessing(100)
	assert.Nil(t, err)
	assert.Equal(t, 3, block.TransactionCount)
	assert.Equal(t, 1, block.CompletedCount)
	assert.Equal(t, 2, block.PendingCount)
	assert.True(t, block.CountersConsistent())

	plain, err := f.jobStore.GetTransactionProcessing(txHash("plain-100"))
	assert.Nil(t, err)
	assert.Equal(t, jobStore.TransactionStatus_Pending, plain.Status)
}

func Test_DecodeFailure(t *testing.T) {
	f := setup(t)

	hash := txHash("undecodable")
	_, err := f.jobStore.InitBlock(&jobStore.BlockProcessing{BlockNumber: 300}, []*jobStore.TransactionProcessing{{TransactionHash: hash}})
	assert.Nil(t, err)

	tx := parser.NewTransaction()
	tx.Hash = hash
	tx.BlockNumber = 300
	tx.DecodeFailed = true
	tx.AddError(domainEvents.NewProcessingError(
		domainEvents.ProcessingStage_Decode,
		domainEvents.ProcessingError_TransactionDecodeFailed,
		errors.New("receipt missing"),
	))

	result := &BlockResult{}
	assert.Nil(t, f.processor.processTransaction(tx, &runOptions{}, result))
	assert.Equal(t, 1, result.Failed)

	record, err := f.jobStore.GetTransactionProcessing(hash)
	assert.Nil(t, err)
	assert.Equal(t, jobStore.TransactionStatus_Failed, record.Status)
	assert.Equal(t, 1, record.ErrorCount)
	assert.Contains(t, record.LastError, "transaction_decode_failed")

	block, err := f.jobStore.GetBlockProcessing(300)
	assert.Nil(t, err)
	assert.Equal(t, 1, block.FailedCount)
	assert.True(t, block.CountersConsistent())
}

func Test_PersistFailureAndReprocess(t *testing.T) {
	f := setup(t)
	f.eventStore.failing = true

	t.Run("Should leave the transaction pending while retries remain", func(t *testing.T) {
		newJob, err := jobStore.NewBlockJob(100, nil)
		assert.Nil(t, err)
		job := f.createJob(t, newJob)
		err = f.processor.ProcessJob(context.Background(), job)
		assert.NotNil(t, err)

		swapTx, err := f.jobStore.GetTransactionProcessing(txHash("swap-100"))
		assert.Nil(t, err)
		assert.Equal(t, jobStore.TransactionStatus_Pending, swapTx.Status)
		assert.Contains(t, swapTx.LastError, "persist_failed")
	})
	t.Run("Should fail the transaction on the final attempt", func(t *testing.T) {
		newJob, err := jobStore.NewBlockJob(100, nil)
		assert.Nil(t, err)
		job := f.createJob(t, newJob)
		job.RetryCount = job.MaxRetries - 1
		assert.NotNil(t, f.processor.ProcessJob(context.Background(), job))

		swapTx, err := f.jobStore.GetTransactionProcessing(txHash("swap-100"))
		assert.Nil(t, err)
		assert.Equal(t, jobStore.TransactionStatus_Failed, swapTx.Status)

		block, err := f.jobStore.GetBlockProcessing(100)
		assert.Nil(t, err)
		assert.Equal(t, 1, block.FailedCount)
		assert.True(t, block.CountersConsistent())
	})
	t.Run("Should keep transactions failed when the block job cannot be enqueued", func(t *testing.T) {
		failInsert := true
		err := f.grm.Callback().Create().Before("gorm:create").Register("test:fail_job_insert", func(db *gorm.DB) {
			if failInsert && db.Statement.Schema != nil && db.Statement.Schema.Table == "processing_jobs" {
				_ = db.AddError(errors.New("transient insert failure"))
			}
		})
		assert.Nil(t, err)
		defer func() { failInsert = false }()

		_, err = f.processor.ReprocessFailed(&jobStore.ReprocessFailedJobPayload{BlockNumbers: []uint64{100}})
		assert.NotNil(t, err)

		swapTx, err := f.jobStore.GetTransactionProcessing(txHash("swap-100"))
		assert.Nil(t, err)
		assert.Equal(t, jobStore.TransactionStatus_Failed, swapTx.Status)
		assert.Equal(t, 0, swapTx.RetryCount)

		block, err := f.jobStore.GetBlockProcessing(100)
		assert.Nil(t, err)
		assert.Equal(t, 1, block.FailedCount)
		assert.True(t, block.CountersConsistent())

		pending, err := f.jobStore.ListJobs(jobStore.JobStatus_Pending, 0)
		assert.Nil(t, err)
		assert.Len(t, pending, 2)
	})
	t.Run("Should reprocess the failed transaction", func(t *testing.T) {
		f.eventStore.failing = false

		newJob, err := jobStore.NewReprocessFailedJob(&jobStore.ReprocessFailedJobPayload{BlockNumbers: []uint64{100}}, nil)
		assert.Nil(t, err)
		reprocess := f.createJob(t, newJob)
		jobs, err := f.processor.ReprocessFailed(&jobStore.ReprocessFailedJobPayload{BlockNumbers: []uint64{100}})
		assert.Nil(t, err)
		assert.Len(t, jobs, 1)
		assert.NotEqual(t, reprocess.Id, jobs[0].Id)

		swapTx, err := f.jobStore.GetTransactionProcessing(txHash("swap-100"))
		assert.Nil(t, err)
		assert.Equal(t, jobStore.TransactionStatus_Pending, swapTx.Status)
		assert.Equal(t, 1, swapTx.RetryCount)

		assert.Nil(t, f.processor.ProcessJob(context.Background(), jobs[0]))
		block, err := f.jobStore.GetBlockProcessing(100)
		assert.Nil(t, err)
		assert.Equal(t, 3, block.CompletedCount)
		assert.NotEqual(t, "", block.EventsRoot)
	})
	t.Run("Should enqueue nothing when nothing failed", func(t *testing.T) {
		jobs, err := f.processor.ReprocessFailed(&jobStore.ReprocessFailedJobPayload{BlockNumbers: []uint64{100}})
		assert.Nil(t, err)
		assert.Len(t, jobs, 0)
	})
}

func Test_ComputeEventsRoot(t *testing.T) {
	a, err := ComputeEventsRoot(1, []string{"0xb", "0xa"})
	assert.Nil(t, err)
	b, err := ComputeEventsRoot(1, []string{"0xa", "0xb"})
	assert.Nil(t, err)
	assert.Equal(t, a, b)

	empty, err := ComputeEventsRoot(1, nil)
	assert.Nil(t, err)
	assert.NotEqual(t, a, empty)

	other, err := ComputeEventsRoot(2, nil)
	assert.Nil(t, err)
	assert.NotEqual(t, empty, other)
}
