package workload

import (
	"fmt"
	"time"

	"github.com/baaaht/mqueue/internal/config"
	"github.com/baaaht/mqueue/internal/logger"
	"github.com/baaaht/mqueue/pkg/mqueue"
	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/baaaht/mqueue/pkg/types"
)

// Scenario is a self-checking queue exercise run against a fresh registry
type Scenario struct {
	Name        string
	Description string
	run         func(e *env) error
}

// ScenarioResult reports the outcome of one scenario
type ScenarioResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type env struct {
	reg   *mqueue.Registry
	sched *sched.Scheduler
}

func (e *env) task(name string, prio sched.Priority) (*sched.Task, error) {
	return e.sched.Spawn(nil, name, prio)
}

func (e *env) receive(d *mqueue.Descriptor, t *sched.Task) (string, int, error) {
	attr, err := d.Attr()
	if err != nil {
		return "", 0, err
	}
	buf := make([]byte, attr.MsgSize)
	n, prio, err := d.Receive(t, buf)
	if err != nil {
		return "", 0, err
	}
	return string(buf[:n]), prio, nil
}

func expect(what, got, want string) error {
	if got != want {
		return types.NewError(types.ErrCodeInternal, fmt.Sprintf("%s: got %q, want %q", what, got, want))
	}
	return nil
}

func expectCode(err error, code string) error {
	if !types.IsErrCode(err, code) {
		return types.NewError(types.ErrCodeInternal, fmt.Sprintf("expected %s, got %v", code, err))
	}
	return nil
}

var scenarioAttr = &mqueue.Attr{MaxMsgs: 2, MsgSize: 16}

// Scenarios returns the built-in scenarios in order
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "priority-order", Description: "higher priority is received first", run: scenarioPriorityOrder},
		{Name: "fifo-within-priority", Description: "equal priorities keep send order", run: scenarioFIFO},
		{Name: "nonblocking-full", Description: "send on a full non-blocking queue would block", run: scenarioNonblockingFull},
		{Name: "past-deadline", Description: "timed receive with a past deadline times out at once", run: scenarioPastDeadline},
		{Name: "waiter-priority", Description: "the highest-priority receiver is woken", run: scenarioWaiterPriority},
		{Name: "unlink-busy", Description: "unlink fails while two descriptors are open", run: scenarioUnlinkBusy},
	}
}

// RunScenarios runs every scenario, each with its own registry and scheduler
func RunScenarios(cfg config.MQueueConfig, log *logger.Logger) []ScenarioResult {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "scenario")

	var results []ScenarioResult
	for _, sc := range Scenarios() {
		start := time.Now()
		err := runScenario(sc, cfg, log)
		res := ScenarioResult{Name: sc.Name, Passed: err == nil, Duration: time.Since(start)}
		if err != nil {
			res.Error = err.Error()
			log.Warn("Scenario failed", "scenario", sc.Name, "error", err)
		} else {
			log.Info("Scenario passed", "scenario", sc.Name, "duration", res.Duration)
		}
		results = append(results, res)
	}
	return results
}

func runScenario(sc Scenario, cfg config.MQueueConfig, log *logger.Logger) error {
	reg, err := mqueue.New(cfg, log)
	if err != nil {
		return err
	}
	defer reg.Shutdown()
	return sc.run(&env{reg: reg, sched: sched.New(log)})
}

func scenarioPriorityOrder(e *env) error {
	t, err := e.task("user", sched.PriorityDefault)
	if err != nil {
		return err
	}
	d, err := e.reg.Open(t, "/Q", mqueue.ORdWr|mqueue.OCreat|mqueue.ONonblock, 0o600, scenarioAttr)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Send(t, []byte("A"), 0); err != nil {
		return err
	}
	if err := d.Send(t, []byte("B"), 5); err != nil {
		return err
	}
	for _, want := range []string{"B", "A"} {
		got, _, err := e.receive(d, t)
		if err != nil {
			return err
		}
		if err := expect("receive", got, want); err != nil {
			return err
		}
	}
	return nil
}

func scenarioFIFO(e *env) error {
	t, err := e.task("user", sched.PriorityDefault)
	if err != nil {
		return err
	}
	d, err := e.reg.Open(t, "/Q", mqueue.ORdWr|mqueue.OCreat|mqueue.ONonblock, 0o600, scenarioAttr)
	if err != nil {
		return err
	}
	defer d.Close()

	for _, m := range []string{"X", "Y"} {
		if err := d.Send(t, []byte(m), 3); err != nil {
			return err
		}
	}
	for _, want := range []string{"X", "Y"} {
		got, _, err := e.receive(d, t)
		if err != nil {
			return err
		}
		if err := expect("receive", got, want); err != nil {
			return err
		}
	}
	return nil
}

func scenarioNonblockingFull(e *env) error {
	t, err := e.task("user", sched.PriorityDefault)
	if err != nil {
		return err
	}
	d, err := e.reg.Open(t, "/Q", mqueue.ORdWr|mqueue.OCreat|mqueue.ONonblock, 0o600, scenarioAttr)
	if err != nil {
		return err
	}
	defer d.Close()

	for _, m := range []string{"1", "2"} {
		if err := d.Send(t, []byte(m), 1); err != nil {
			return err
		}
	}
	if err := expectCode(d.Send(t, []byte("3"), 1), types.ErrCodeWouldBlock); err != nil {
		return err
	}
	attr, err := d.Attr()
	if err != nil {
		return err
	}
	if attr.CurMsgs != 2 {
		return types.NewError(types.ErrCodeInternal, fmt.Sprintf("occupancy changed to %d", attr.CurMsgs))
	}
	return nil
}

func scenarioPastDeadline(e *env) error {
	t, err := e.task("user", sched.PriorityDefault)
	if err != nil {
		return err
	}
	d, err := e.reg.Open(t, "/Q", mqueue.ORdWr|mqueue.OCreat, 0o600, scenarioAttr)
	if err != nil {
		return err
	}
	defer d.Close()

	start := time.Now()
	_, _, err = d.TimedReceive(t, make([]byte, scenarioAttr.MsgSize), e.reg.Clock().Now().Add(-time.Second))
	if err := expectCode(err, types.ErrCodeTimeout); err != nil {
		return err
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		return types.NewError(types.ErrCodeInternal, fmt.Sprintf("past deadline took %s", elapsed))
	}
	return nil
}

func scenarioWaiterPriority(e *env) error {
	low, err := e.task("L", 10)
	if err != nil {
		return err
	}
	high, err := e.task("H", 200)
	if err != nil {
		return err
	}
	sender, err := e.task("S", sched.PriorityDefault)
	if err != nil {
		return err
	}
	d, err := e.reg.Open(sender, "/Q", mqueue.ORdWr|mqueue.OCreat, 0o600, scenarioAttr)
	if err != nil {
		return err
	}
	defer d.Close()

	type got struct {
		who  string
		data string
		err  error
	}
	results := make(chan got, 2)
	block := func(t *sched.Task, waiters int) error {
		go func() {
			data, _, err := e.receive(d, t)
			results <- got{who: t.Name(), data: data, err: err}
		}()
		return waitFor(func() bool {
			st, err := d.Stats()
			return err == nil && st.RecvWaiters == waiters
		})
	}
	if err := block(low, 1); err != nil {
		return err
	}
	if err := block(high, 2); err != nil {
		return err
	}

	if err := d.Send(sender, []byte("once"), 1); err != nil {
		return err
	}
	first := <-results
	if first.err != nil {
		return first.err
	}
	if err := expect("woken task", first.who, "H"); err != nil {
		return err
	}
	if low.Status() != types.StatusBlocked {
		return types.NewError(types.ErrCodeInternal, fmt.Sprintf("low priority task is %s, want blocked", low.Status()))
	}

	// Recover the low priority task so nothing is left waiting
	if err := e.sched.Delete(low); err != nil {
		return err
	}
	last := <-results
	return expectCode(last.err, types.ErrCodeRecovered)
}

func scenarioUnlinkBusy(e *env) error {
	t, err := e.task("user", sched.PriorityDefault)
	if err != nil {
		return err
	}
	d1, err := e.reg.Open(t, "/Q", mqueue.ORdWr|mqueue.OCreat, 0o600, scenarioAttr)
	if err != nil {
		return err
	}
	d2, err := e.reg.Open(t, "/Q", mqueue.ORdWr, 0, nil)
	if err != nil {
		return err
	}
	if err := expectCode(e.reg.Unlink("/Q"), types.ErrCodeBusy); err != nil {
		return err
	}
	if err := d1.Close(); err != nil {
		return err
	}
	if err := d2.Close(); err != nil {
		return err
	}
	info, err := e.reg.Lookup("/Q")
	if err != nil {
		return err
	}
	if info.OpenCount != 0 {
		return types.NewError(types.ErrCodeInternal, fmt.Sprintf("open count %d after closing both descriptors", info.OpenCount))
	}

	d3, err := e.reg.Open(t, "/Q", mqueue.ORdWr, 0, nil)
	if err != nil {
		return err
	}
	idle := e.reg.PoolStats()
	if err := d3.Send(t, []byte("held"), 0); err != nil {
		return err
	}
	if e.reg.PoolStats() == idle {
		return types.NewError(types.ErrCodeInternal, "queued message did not take an envelope")
	}
	if err := e.reg.Unlink("/Q"); err != nil {
		return err
	}
	if err := d3.Close(); err != nil {
		return err
	}
	// Destroying the queue drains its message back to the pool
	if got := e.reg.PoolStats(); got != idle {
		return types.NewError(types.ErrCodeInternal, fmt.Sprintf("pool %+v after last close, want %+v", got, idle))
	}
	return nil
}

// waitFor polls cond until it holds or a second passes
func waitFor(cond func() bool) error {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return types.NewError(types.ErrCodeTimeout, "condition not reached")
}
