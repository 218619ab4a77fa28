// Package runstore records analysis runs in Redis so that the outputs of
// each pipeline stage can be listed, inspected and followed live.
//
// # Overview
//
// Every stage that finishes successfully writes one Run: a small immutable
// record holding the kind of run, a human label, a JSON summary of the
// result and the IDs of the runs it was built from. Runs form a provenance
// chain: a regression run points at the panel run whose CSV it read.
//
// # Redis layout
//
// All keys and channels are namespaced by project so several analyses can
// share one Redis server:
//
//	esgpanel:{project}:run:{id}       hash, one per run
//	esgpanel:{project}:runs           sorted set of run IDs scored by created_at_ms
//	esgpanel:{project}:run_events     Pub/Sub channel carrying the run as JSON
//
// # Usage
//
//	client, err := runstore.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	run := runstore.NewRun(runstore.KindRegression, "FE gdp_growth", payload)
//	if err := client.CreateRun(ctx, run); err != nil {
//		return err
//	}
//
// Delivery on the events channel is at-most-once; the sorted set is the
// source of truth for listing.
package runstore
