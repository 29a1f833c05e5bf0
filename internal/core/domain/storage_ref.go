package domain

import (
	"fmt"
	"strings"
)

const (
	ImageBucket = "screenshots"
	AudioBucket = "reviews"

	storageRefPrefix = "storage:"
)

// StorageRef builds the stored pointer for an object in a bucket.
func StorageRef(bucket, key string) string {
	return fmt.Sprintf("%s%s/%s", storageRefPrefix, bucket, key)
}

// ParseStorageRef splits a storage pointer into bucket and key. ok is false
// for values that are not storage pointers, such as plain URLs.
func ParseStorageRef(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, storageRefPrefix)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func IsStorageRef(ref string) bool {
	return strings.HasPrefix(ref, storageRefPrefix)
}
