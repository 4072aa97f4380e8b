package biz

import (
	"github.com/kart-io/revdiff/pkg/cache"
)

// Cache key layout. Every key is namespaced under "diff:" so prefix
// invalidation never touches other tenants of a shared backend.
const (
	keyPrefixVersion    = "diff:version:"
	keyPrefixContent    = "diff:content:"
	keyPrefixAIResult   = "diff:airesult:"
	keyPrefixComparison = "diff:cmp:"
	keyPrefixUserStats  = "diff:stats:user:"
	keyPrefixSysStats   = "diff:stats:system:"
	keyPrefixDocStats   = "diff:stats:doc:"
	keyPrefixSnapshot   = "diff:ratelimit:"
)

func versionKey(versionID string) string {
	return keyPrefixVersion + versionID
}

func contentKey(versionID string) string {
	return keyPrefixContent + versionID
}

// aiResultKey is content-addressed and includes the model, so a result
// computed with one model is never served for a request that asked for
// another.
func aiResultKey(model, contentA, contentB string) string {
	return keyPrefixAIResult + cache.HashKey(model, contentA, contentB)
}

// comparisonKey uses the order-normalized pair identity.
func comparisonKey(documentID, loVersionID, hiVersionID string) string {
	return keyPrefixComparison + cache.Key(documentID, loVersionID, hiVersionID)
}

func userStatsPrefix(userID string) string {
	return keyPrefixUserStats + userID + ":"
}

func docStatsPrefix(documentID string) string {
	return keyPrefixDocStats + documentID + ":"
}

func snapshotKey(userID string) string {
	return keyPrefixSnapshot + userID
}
