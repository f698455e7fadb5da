/*
Package orchestrator sequences a full stack update.

The pipeline runs phases in a fixed order:

	validate-env → backup → pull-images → migrate → rolling-restart → verify → prune-images

Environment validation failures are preconditions: nothing has been
touched, so the run simply aborts. A failed backup pauses the pipeline
for an operator decision. Failures in any later phase select the newest
verified backup as the rollback candidate and surface it in the summary;
actually restoring it is a separate, explicitly confirmed command.
Image pruning is best effort and never fails a finished update.
*/
package orchestrator
