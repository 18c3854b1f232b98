package parser

import (
	"sync"
	"testing"
)

func TestParserPool_ParsesPython(t *testing.T) {
	pool := NewParserPool(Python())

	tree := pool.Parse([]byte("def main():\n    return 1\n"))
	if tree == nil {
		t.Fatal("expected non-nil parse tree for valid Python source")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.Kind() != "module" || root.HasError() {
		t.Fatalf("expected error-free module root, got %s (hasError=%v)", root.Kind(), root.HasError())
	}
	if pool.Active() != 0 {
		t.Fatalf("expected no active leases after Parse, got %d", pool.Active())
	}
}

func TestParserPool_PutNil(t *testing.T) {
	pool := NewParserPool(Python())
	pool.Put(nil)
}

func TestParserPool_TracksLeases(t *testing.T) {
	pool := NewParserPool(Python())

	sp := pool.Get()
	if pool.Active() != 1 {
		t.Fatalf("expected 1 active lease, got %d", pool.Active())
	}
	sp.Reset()
	pool.Put(sp)
	if pool.Active() != 0 {
		t.Fatalf("expected 0 active leases, got %d", pool.Active())
	}

	sp2 := pool.Get()
	defer pool.Put(sp2)
	tree := sp2.Parse([]byte("x = 1\n"), nil)
	if tree == nil {
		t.Fatal("parser should keep its language after Reset")
	}
	tree.Close()
}

func TestParserPool_ConcurrentAccess(t *testing.T) {
	pool := NewParserPool(Python())

	const goroutines = 20
	const iters = 25

	var wg sync.WaitGroup
	wg.Add(goroutines)
	src := []byte("import os\n\ndef run():\n    os.getcwd()\n")

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				tree := pool.Parse(src)
				if tree == nil {
					t.Errorf("expected non-nil parse tree")
					continue
				}
				tree.Close()
			}
		}()
	}
	wg.Wait()
}
