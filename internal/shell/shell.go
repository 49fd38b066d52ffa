// Package shell implements an interactive introspection REPL for a running
// node - neighbours, graph membership, forwarding table, and a stats line
// of the node's lambda and table sizes - grounded on the teacher's cmd/client liner-based interactive
// shell, in place of its put/get/lookup DHT command set.
package shell

import (
	"errors"
	"fmt"
	"strings"

	"ilnpnode/internal/control"
	"ilnpnode/internal/domain"

	"github.com/peterh/liner"
)

// Shell drives an interactive liner prompt against a running node's
// control plane.
type Shell struct {
	myAddr domain.Address
	plane  *control.Plane
}

// New constructs a Shell for the given node.
func New(myAddr domain.Address, plane *control.Plane) *Shell {
	return &Shell{myAddr: myAddr, plane: plane}
}

// Run blocks on stdin until the user exits or input is closed.
func (s *Shell) Run() {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("ilnp node shell. node=%s\n", s.myAddr.String())
	fmt.Println("Available commands: neighbours/graph/forwarding/stats/help/exit")

	for {
		input, err := line.Prompt(fmt.Sprintf("ilnp[%s]> ", s.myAddr.ID.String()))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			return
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return
		case "help":
			fmt.Println("Available commands: neighbours/graph/forwarding/stats/help/exit")
		case "neighbours":
			s.printNeighbours()
		case "graph":
			s.printGraph()
		case "forwarding":
			s.printForwarding()
		case "stats":
			s.printStats()
		default:
			fmt.Printf("unknown command %q, type 'help'\n", args[0])
		}
	}
}

func (s *Shell) printNeighbours() {
	snap := s.plane.Snapshot()
	fmt.Printf("neighbours (%d):\n", len(snap.Neighbours))
	for _, id := range snap.Neighbours {
		fmt.Printf("  %s\n", id.String())
	}
}

func (s *Shell) printGraph() {
	snap := s.plane.Snapshot()
	fmt.Printf("graph nodes (%d):\n", len(snap.GraphNodes))
	for _, id := range snap.GraphNodes {
		fmt.Printf("  %s\n", id.String())
	}
}

func (s *Shell) printForwarding() {
	snap := s.plane.Snapshot()
	fmt.Println("NH_int:")
	for dest, hop := range snap.NHInt {
		fmt.Printf("  %s -> %s\n", dest.String(), hop.String())
	}
	fmt.Println("NH_ext:")
	for loc, hop := range snap.NHExt {
		fmt.Printf("  %s -> %s\n", loc.String(), hop.String())
	}
}

func (s *Shell) printStats() {
	snap := s.plane.Snapshot()
	fmt.Printf("lambda: %d\n", snap.MyLambda)
	fmt.Printf("neighbours: %d, graph nodes: %d, NH_int: %d, NH_ext: %d\n",
		len(snap.Neighbours), len(snap.GraphNodes), len(snap.NHInt), len(snap.NHExt))
}
