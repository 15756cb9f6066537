package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agora_go/internal/core/logger"
	"agora_go/internal/model"
	"agora_go/internal/service"
)

// Runtime warmed board structure held in memory.
// The category list and per-category forum trees change rarely and are
// read on nearly every page; admin mutations call Reload.
type Runtime struct {
	categories []*service.CategoryDTO
	trees      map[int][]*service.ForumTreeNode // cid -> forum tree
	mu         sync.RWMutex
	loadedAt   time.Time
}

var rt *Runtime
var once sync.Once

// RuntimeConfig Runtime configuration
type RuntimeConfig struct {
	CategorySvc *service.CategoryService
	ForumSvc    *service.ForumService
}

// Init initializes the Runtime singleton and runs the first warmup
func Init(cfg *RuntimeConfig) error {
	var initErr error
	once.Do(func() {
		rt = &Runtime{trees: make(map[int][]*service.ForumTreeNode)}
		initErr = rt.warmup(cfg)
	})
	return initErr
}

// Get returns the Runtime instance
func Get() *Runtime {
	return rt
}

func (r *Runtime) warmup(cfg *RuntimeConfig) error {
	ctx := context.Background()
	start := time.Now()

	logger.Info("runtime warmup started")

	// warm with staff visibility; handlers filter hidden categories
	cats, err := cfg.CategorySvc.List(ctx, model.Identity{Staff: true})
	if err != nil {
		logger.Error("warmup category list failed", logger.String("error", err.Error()))
		return err
	}

	trees := make(map[int][]*service.ForumTreeNode, len(cats))
	for _, cat := range cats {
		tree, err := cfg.ForumSvc.GetTree(ctx, cat.Cid)
		if err != nil {
			logger.Error("warmup forum tree failed",
				logger.Int("cid", cat.Cid), logger.String("error", err.Error()))
			return err
		}
		trees[cat.Cid] = tree
	}

	r.mu.Lock()
	r.categories = cats
	r.trees = trees
	r.loadedAt = time.Now()
	r.mu.Unlock()

	logger.Info("runtime warmup completed",
		logger.Int("categories", len(cats)),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// Reload re-runs the warmup; called after board structure changes
func (r *Runtime) Reload(cfg *RuntimeConfig) error {
	return r.warmup(cfg)
}

// Categories returns the warmed category list
func (r *Runtime) Categories() []*service.CategoryDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.categories
}

// Tree returns the warmed forum tree for one category
func (r *Runtime) Tree(cid int) []*service.ForumTreeNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trees[cid]
}

// Status returns the runtime status
func (r *Runtime) Status() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]interface{}{
		"category_count": len(r.categories),
		"tree_count":     len(r.trees),
		"loaded_at":      r.loadedAt.Format("2006-01-02 15:04:05"),
	}
}

// WarmUpLog warmup summary line
func WarmUpLog() string {
	if rt == nil {
		return "runtime not initialized"
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return fmt.Sprintf("Categories: %d, Loaded: %s",
		len(rt.categories), rt.loadedAt.Format("2006-01-02 15:04:05"))
}
