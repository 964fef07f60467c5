// Copyright 2025 The Taskcluster Taskgraph Authors.
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

package builtin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/taskcluster/taskgraph/pkg/transform"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// Chunking implements the chunking built-in transform: it duplicates a
// stub `chunk.total-chunks` times, substituting "{{this_chunk}}" and
// "{{total_chunks}}" into the named fields and recording both in
// attributes.
func Chunking(ctx context.Context, cfg *transform.Config, stub transform.Stub, out chan<- transform.Stub) error {
	chunkCfg, ok := stub.Get("chunk")
	if !ok {
		out <- stub
		return nil
	}

	totalVal, ok := chunkCfg.Get("total-chunks")
	if !ok {
		return fmt.Errorf("chunk.total-chunks is required")
	}
	total, ok := totalVal.AsInt()
	if !ok {
		return fmt.Errorf("chunk.total-chunks must be an integer")
	}

	fieldsVal, _ := chunkCfg.Get("substitution-fields")
	fieldList, _ := fieldsVal.AsList()
	fields := make([]string, 0, len(fieldList))
	for _, f := range fieldList {
		if s, ok := f.AsString(); ok {
			fields = append(fields, s)
		}
	}

	base, _ := stub.AsMap()
	delete(base, "chunk")
	baseStub := value.Map(base)

	for thisChunk := int64(1); thisChunk <= total; thisChunk++ {
		subs := map[string]value.Value{
			"this_chunk":   value.Int(thisChunk),
			"total_chunks": value.Int(total),
		}
		sub := baseStub
		attrs, ok := sub.Get("attributes")
		if !ok {
			attrs = value.Map(nil)
		}
		am, _ := attrs.AsMap()
		am["this_chunk"] = value.String(strconv.FormatInt(thisChunk, 10))
		am["total_chunks"] = value.String(strconv.FormatInt(total, 10))
		sub = DeepSet(sub, "attributes", value.Map(am))
		sub = SubstituteFields(sub, fields, subs)
		out <- sub
	}
	return nil
}
