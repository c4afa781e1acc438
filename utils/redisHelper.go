package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

/* Redis */

func listKey[T any]() string {
	return GetTypeName[T]() + "List"
}

// StoreRedisList caches a full catalog listing for CACHE_LIFESPAN hours.
func StoreRedisList[T any](obj []*T) error {
	return config.SetRedisObject(listKey[T](), obj, GetCacheLifespan())
}

// RetrieveRedisList returns nil when the list is not cached.
func RetrieveRedisList[T any]() ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(listKey[T](), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

func RemoveRedisList[T any]() error {
	return config.RemoveRedisKey(listKey[T]())
}
