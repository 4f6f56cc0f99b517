package poolcache

import "testing"

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(OpenOptions{InMemory: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_RecordAndLookup(t *testing.T) {
	c := openTestCache(t)

	token := "0xAbCd000000000000000000000000000000000001"
	if err := c.Record(token, "uniswap", "uni-pool-1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := c.Record(token, "sushiswap", "sushi-pool-1"); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Lookup is case-insensitive on the token address.
	pools, err := c.Lookup("0xabcd000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pools["uniswap"] != "uni-pool-1" {
		t.Fatalf("unexpected pool id: %q", pools["uniswap"])
	}
}

func TestCache_LookupUnknownToken(t *testing.T) {
	c := openTestCache(t)
	pools, err := c.Lookup("0x0000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(pools) != 0 {
		t.Fatalf("expected empty map, got %v", pools)
	}
}

func TestCache_RecordOverwriteIsIdempotent(t *testing.T) {
	c := openTestCache(t)
	token := "0x1111111111111111111111111111111111111111"
	for i := 0; i < 3; i++ {
		if err := c.Record(token, "uniswap", "pool-a"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	pools, err := c.Lookup(token)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if pools["uniswap"] != "pool-a" {
		t.Fatalf("unexpected pool id: %q", pools["uniswap"])
	}
}
