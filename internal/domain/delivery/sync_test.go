package delivery

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncResult_Status(t *testing.T) {
	r := &SyncResult{}
	r.Record(ItemResult{ItemID: "1", Name: "A", Success: true, Attempts: 1})
	assert.Equal(t, SyncStatusSuccess, r.Status())

	r.Record(ItemResult{ItemID: "2", Name: "B", Attempts: 3, Error: "price field missing"})
	assert.Equal(t, SyncStatusPartial, r.Status())
	assert.Equal(t, 1, r.ItemsSynced)
	assert.Equal(t, 1, r.ItemsFailed)
	assert.Equal(t, []string{"B: price field missing"}, r.Errors)
}

func TestSyncLog_CompleteAndFail(t *testing.T) {
	start := time.Now()
	log := NewSyncLog("r1", PlatformDoorDash, SyncTypeFullSync, start)

	result := &SyncResult{}
	result.Record(ItemResult{Success: true})
	log.Complete(result, start.Add(time.Second))
	assert.Equal(t, SyncStatusSuccess, log.Status)
	assert.Equal(t, 1, log.ItemsSynced)

	failed := NewSyncLog("r1", PlatformDoorDash, SyncTypeFullSync, start)
	failed.Fail("no session", start)
	assert.Equal(t, SyncStatusFailed, failed.Status)
	assert.Equal(t, []string{"no session"}, failed.Errors)
}

func TestSyncLogFilter_Normalize(t *testing.T) {
	f := SyncLogFilter{Page: 0, PageSize: 500}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.PageSize)

	f = SyncLogFilter{Page: 3, PageSize: 10}
	f.Normalize()
	assert.Equal(t, 20, f.Offset())
}

func TestAggregateOutcomes_SumsAndAnds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			n := rng.Intn(4) + 1
			outcomes := make([]SyncOutcome, n)
			wantSynced, wantFailed, wantSuccess := 0, 0, true
			for j := range outcomes {
				outcomes[j] = SyncOutcome{
					Platform:    AllPlatforms()[j%2],
					Success:     rng.Intn(3) > 0,
					ItemsSynced: rng.Intn(50),
					ItemsFailed: rng.Intn(5),
				}
				wantSynced += outcomes[j].ItemsSynced
				wantFailed += outcomes[j].ItemsFailed
				wantSuccess = wantSuccess && outcomes[j].Success
			}

			batch := AggregateOutcomes(outcomes)
			assert.Equal(t, wantSynced, batch.TotalSynced)
			assert.Equal(t, wantFailed, batch.TotalFailed)
			assert.Equal(t, wantSuccess, batch.OverallSuccess)
			assert.Len(t, batch.Platforms, n)
		})
	}
}

func TestFailedOutcome(t *testing.T) {
	o := FailedOutcome(PlatformUberEats, SyncTypeStockUpdate, "no session")
	assert.False(t, o.Success)
	assert.Equal(t, SyncStatusFailed, o.Status)
	assert.Equal(t, []string{"no session"}, o.Errors)
}
