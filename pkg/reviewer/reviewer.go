package reviewer

import (
	"context"
	"sync"
	"time"

	"github.com/keyki/hoya/pkg/apperrors"
	"github.com/keyki/hoya/pkg/appstate"
	"github.com/keyki/hoya/pkg/log"
	"github.com/keyki/hoya/pkg/metrics"
	"github.com/keyki/hoya/pkg/rmclient"
)

// Reviewer periodically runs the engine's review pass and carries its
// output to and from a resource manager client.
type Reviewer struct {
	engine *appstate.Engine
	rm     rmclient.ResourceManagerClient

	interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup

	// TeardownCh receives the engine's teardown error, if a review pass
	// ever reports one; a buffer of one so Stop never blocks on it.
	TeardownCh chan *apperrors.TriggerClusterTeardownError
}

// New builds a reviewer that ticks every interval.
func New(engine *appstate.Engine, rm rmclient.ResourceManagerClient, interval time.Duration) *Reviewer {
	return &Reviewer{
		engine:     engine,
		rm:         rm,
		interval:   interval,
		TeardownCh: make(chan *apperrors.TriggerClusterTeardownError, 1),
	}
}

// Start launches the review loop and the completion-event pump in
// background goroutines.
func (r *Reviewer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		return nil
	}
	r.stopCh = make(chan struct{})

	events, err := r.rm.CompletionEvents(ctx)
	if err != nil {
		return err
	}

	r.wg.Add(2)
	go r.runReviewLoop(ctx)
	go r.runCompletionPump(ctx, events)
	return nil
}

// Stop signals both background goroutines and waits for them to exit.
func (r *Reviewer) Stop() {
	r.mu.Lock()
	stopCh := r.stopCh
	r.stopCh = nil
	r.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	r.wg.Wait()
}

func (r *Reviewer) runReviewLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.mu.Lock()
	stopCh := r.stopCh
	r.mu.Unlock()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reviewOnce(ctx)
		}
	}
}

func (r *Reviewer) reviewOnce(ctx context.Context) {
	stop := metrics.Timer(metrics.ReviewDuration)
	defer stop()
	metrics.ReviewCyclesTotal.Inc()

	result, err := r.engine.ReviewRequestAndReleaseNodes(time.Now())
	if err != nil {
		if td, ok := err.(*apperrors.TriggerClusterTeardownError); ok {
			metrics.TeardownTriggersTotal.WithLabelValues(td.RoleName).Inc()
			select {
			case r.TeardownCh <- td:
			default:
			}
			return
		}
		log.Errorf(err, "review pass failed")
		return
	}

	for _, release := range result.Releases {
		if err := r.engine.ContainerReleaseSubmitted(release.ContainerID, time.Now()); err != nil {
			log.Errorf(err, "mark container %s released", release.ContainerID)
			continue
		}
		if err := r.rm.ReleaseContainer(ctx, release); err != nil {
			log.Errorf(err, "release container %s", release.ContainerID)
		}
	}

	if len(result.Requests) == 0 {
		return
	}
	granted, err := r.rm.AllocateContainers(ctx, result.Requests)
	if err != nil {
		log.Errorf(err, "allocate containers")
		return
	}
	assigned, surplusReleases, err := r.engine.OnContainersAllocated(granted, time.Now())
	if err != nil {
		log.Errorf(err, "process allocated containers")
		return
	}
	for _, release := range surplusReleases {
		if err := r.rm.ReleaseContainer(ctx, release); err != nil {
			log.Errorf(err, "release surplus container %s", release.ContainerID)
		}
	}
	nm, _ := r.rm.(rmclient.NodeManagerCallbacks)
	for _, c := range assigned {
		if err := r.engine.ContainerStartSubmitted(c.ID, time.Now()); err != nil {
			log.Errorf(err, "submit start for container %s", c.ID)
			continue
		}
		// A client without node-manager callbacks hands back containers it
		// has already started, so the start is recorded as confirmed.
		if nm != nil {
			if err := nm.OnStarted(ctx, c.ID); err != nil {
				if failErr := r.engine.OnNodeManagerContainerStartFailed(c.ID, time.Now(), err.Error()); failErr != nil {
					log.Errorf(failErr, "record start failure for container %s", c.ID)
				}
				continue
			}
		}
		if err := r.engine.OnNodeManagerContainerStarted(c.ID, time.Now()); err != nil {
			log.Errorf(err, "record start for container %s", c.ID)
		}
	}
}

func (r *Reviewer) runCompletionPump(ctx context.Context, events <-chan rmclient.CompletionStatus) {
	defer r.wg.Done()

	r.mu.Lock()
	stopCh := r.stopCh
	r.mu.Unlock()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			result, err := r.engine.OnCompletedNode(ev.ContainerID, ev.ExitCode, ev.Diagnostics, time.Now())
			if err != nil {
				log.Errorf(err, "process completion for container %s", ev.ContainerID)
				continue
			}
			if result.Unknown {
				metrics.UnknownCompletionsTotal.Inc()
			}
			if result.Surplus {
				metrics.SurplusContainersTotal.Inc()
			}
		}
	}
}
