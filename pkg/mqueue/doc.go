// Package mqueue implements named, priority-ordered, blocking message queues
// for tasks managed by package sched.
//
// The package provides:
//
//   - A Registry mapping queue names to queue objects, with create-or-attach
//     open semantics and an unlink that refuses queues still open more than once
//   - Descriptors owned by task groups and closed automatically on group exit
//   - Priority-ordered delivery (highest priority first, FIFO within a priority)
//   - Blocking and deadline-bounded send/receive, woken in task-priority order
//   - A non-blocking interrupt send path that may exceed queue capacity
//   - One-shot arrival notification and recovery of tasks deleted mid-wait
//
// Example usage:
//
//	reg, err := mqueue.New(cfg.MQueue, log)
//	if err != nil {
//	    return err
//	}
//
//	d, err := reg.Open(task, "/sensor", mqueue.ORdWr|mqueue.OCreat, 0644,
//	    &mqueue.Attr{MaxMsgs: 16, MsgSize: 32})
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//
//	if err := d.Send(task, payload, 5); err != nil {
//	    return err
//	}
//
//	buf := make([]byte, 32)
//	n, prio, err := d.TimedReceive(task, buf, time.Now().Add(time.Second))
package mqueue
