// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package pipeline moves changed source records into the vector-augmented
// destination store.
//
// A run scans the source change stream from the last committed watermark up
// to an upper bound fixed at run start, transforms each record (content
// normalization plus embedding), writes the results through the idempotent
// destination writer, and finally commits a new watermark describing how far
// the destination is known complete. Runs are serialized per pipeline with a
// TTL lease, and the watermark commit is a compare-and-advance, so even a
// runner whose lease lapsed mid-run cannot lose another runner's progress.
//
// Stages are pipelined: while one batch writes, the next is already being
// read and transformed. Memory stays bounded by the batch size no matter how
// far behind the watermark is.
//
// Basic usage:
//
//	coordinator, err := pipeline.NewCoordinator(source, destination, watermarks, embedder, nil)
//	if err != nil {
//		return err
//	}
//	defer coordinator.Release()
//
//	summary, err := coordinator.RunOnce(ctx, "records")
//	if err != nil {
//		return err
//	}
//	fmt.Printf("run %s: read=%d written=%d failed=%d\n",
//		summary.Status, summary.RecordsRead, summary.Inserted+summary.Updated, summary.Failed)
//
// Per-record failures never fail a run outright. They are counted in the
// summary, the watermark stops short of the earliest failed record, and the
// next run picks those records up again.
package pipeline
