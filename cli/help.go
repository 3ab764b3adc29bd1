// Copyright (c) 2023, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"
)

type Help struct {
	termWidth   uint
	maxCmdWidth uint
	commands    []string
}

var commandHelp = map[string]string{
	"devices":  "List every device currently in the registry.",
	"register": "Manually register a device: register <rank> <node_id> <phy_id> <x> <y> <z>.",
	"remove":   "Deregister a device by id: remove <device_id>.",
	"tx":       "Inject a transmission from a registered device: tx <device_id> <power_dbm>.",
	"loss":     "Switch the active loss model: loss free-space|indoor.",
	"delay":    "Switch the active delay model: delay light-speed.",
	"counters": "Print the current per-run summary counters.",
	"exit":     "Exit the console.",
}

// newHelp creates a Help object used to display console command help.
func newHelp() Help {
	h := Help{}
	h.termWidth = 80
	h.maxCmdWidth = 10
	h.commands = make([]string, 0, len(commandHelp))
	for k := range commandHelp {
		h.commands = append(h.commands, k)
	}
	sort.Strings(h.commands)
	h.update()
	return h
}

// update refreshes termWidth to account for the current terminal size.
func (help *Help) update() {
	fdTerm := int(os.Stdout.Fd())
	if term.IsTerminal(fdTerm) {
		if width, _, err := term.GetSize(fdTerm); err == nil {
			help.termWidth = uint(width)
		}
	}
}

// outputGeneralHelp renders help for every known command.
func (help *Help) outputGeneralHelp() string {
	return help.outputHelp(help.commands)
}

// outputCommandHelp renders help for one specific command.
func (help *Help) outputCommandHelp(command string) string {
	return help.outputHelp([]string{command})
}

func (help *Help) outputHelp(commands []string) string {
	help.update()
	s := ""
	for _, cmd := range commands {
		explanation, ok := commandHelp[cmd]
		if !ok {
			explanation = "(unknown command)"
		}
		w := help.termWidth - help.maxCmdWidth - 1
		explWrapped := strings.Split(wordwrap.WrapString(explanation, w), "\n")
		for idx, line := range explWrapped {
			if idx == 0 {
				s += fmt.Sprintf("%-10s %s\n", cmd, line)
				continue
			}
			s += fmt.Sprintf("%-10s %s\n", "", line)
		}
	}
	return s
}
