package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"github.com/bsm/redislock"
)

var ErrorRequisitionBusy = errors.New("requisition is being modified by another request, try again")

const requisitionLockTTL = 30 * time.Second

// RequisitionLock serializes writes to one requisition across instances. The
// returned func releases the lock and is never nil. Without Redis the write
// proceeds unlocked and MySQL row locks are the only serialization.
func RequisitionLock(ctx context.Context, requisitionId int, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}

	lockKey := fmt.Sprintf("lock:requisition:%d", requisitionId)
	lock, err := locker.Obtain(ctx, lockKey, requisitionLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "could not obtain requisition lock", requisitionId, err)
		return func() {}, ErrorRequisitionBusy
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "error obtaining requisition lock", requisitionId, err)
		return func() {}, err
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(logger, moduleName, functionName, "release requisition lock", requisitionId, err)
		}
	}, nil
}
