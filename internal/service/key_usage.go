package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

// Константы worker pool
const (
	defaultUsageWorkers = 2    // Количество воркеров
	usageChannelBuffer  = 1000 // Размер буфера канала
	maxUsageRetries     = 3    // Максимальное количество попыток записи
)

// KeyUsageRecorder асинхронно пишет last_used_at ингест-ключей,
// чтобы аутентификация не ждала лишний UPDATE
type KeyUsageRecorder interface {
	Start()
	Stop()
	Record(keyID string, at time.Time)
}

type keyUsage struct {
	keyID string
	at    time.Time
}

// keyUsageRecorder реализация на Worker Pool
type keyUsageRecorder struct {
	keys        repository.APIKeyRepository
	logger      *zap.Logger
	metrics     *metrics.Metrics
	usage       chan keyUsage
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewKeyUsageRecorder(
	keys repository.APIKeyRepository,
	workerCount int,
	logger *zap.Logger,
	m *metrics.Metrics,
) KeyUsageRecorder {
	if workerCount <= 0 {
		workerCount = defaultUsageWorkers
	}
	return &keyUsageRecorder{
		keys:        keys,
		logger:      logger,
		metrics:     m,
		usage:       make(chan keyUsage, usageChannelBuffer),
		workerCount: workerCount,
	}
}

// Start запускает worker pool
func (r *keyUsageRecorder) Start() {
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.logger.Info("Запуск воркеров last_used_at", zap.Int("count", r.workerCount))

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop дописывает то, что уже в буфере, и останавливает воркеры
func (r *keyUsageRecorder) Stop() {
	r.logger.Info("Остановка воркеров last_used_at...")
	r.cancel()
	r.wg.Wait()
	r.logger.Info("Воркеры last_used_at остановлены")
}

func (r *keyUsageRecorder) worker(id int) {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			r.drain()
			r.logger.Debug("Воркер last_used_at остановлен", zap.Int("id", id))
			return

		case u := <-r.usage:
			r.touch(context.Background(), u)
		}
	}
}

// drain обрабатывает остаток буфера после отмены
func (r *keyUsageRecorder) drain() {
	for {
		select {
		case u := <-r.usage:
			r.touch(context.Background(), u)
		default:
			return
		}
	}
}

// touch одна запись с retry
func (r *keyUsageRecorder) touch(parent context.Context, u keyUsage) {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	var err error
	for i := 0; i < maxUsageRetries; i++ {
		if err = r.keys.TouchLastUsed(ctx, u.keyID, u.at); err == nil {
			return
		}
		if i < maxUsageRetries-1 {
			r.logger.Debug("Повторная попытка записи last_used_at",
				zap.String("key_id", u.keyID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	r.logger.Error("Не удалось записать last_used_at после всех попыток",
		zap.String("key_id", u.keyID),
		zap.Error(err),
	)
}

// Record неблокирующая постановка в очередь; при заполненном буфере запись теряется
func (r *keyUsageRecorder) Record(keyID string, at time.Time) {
	select {
	case r.usage <- keyUsage{keyID: keyID, at: at}:
	default:
		r.metrics.RecordKeyUsageDropped()
		r.logger.Warn("Буфер last_used_at заполнен, запись потеряна",
			zap.String("key_id", keyID),
		)
	}
}
