/*
Package rollout recreates services one at a time, gated by health.

Each service goes through recreate → bounded health wait → settle, in
dependency-rank order. The health wait polls the prober on a fixed
interval up to the descriptor's restart timeout; a service that never
reports running-healthy fails the run, and services after it are never
touched. At any instant at most one service is being recreated.
*/
package rollout
