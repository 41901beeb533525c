// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
svcall is a small-variant caller: it shards a reference and a set of BAMs
into blocks, calls each block independently, and reduces the per-block VCF
shards into a single output.
*/
package main

import (
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if err := newRootCmd().Execute(); err != nil {
		log.Error.Printf("%v", err)
		os.Exit(1)
	}
}
