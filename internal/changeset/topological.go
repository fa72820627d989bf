package changeset

import (
	"sort"

	"github.com/pgplex/monolayer/internal/rename"
	"github.com/pgplex/monolayer/internal/snapshot"
)

// TablePriorities orders tables so that referenced tables come before the
// tables referencing them. Nodes are the current and previous names of every
// local table and the names of every remote table; edges come from the
// foreign keys on both sides. Targets in other schemas appear as
// "schema.table".
func TablePriorities(local, remote *snapshot.SchemaMigrationInfo, renames *rename.Resolver) []string {
	schemaName := local.Schema
	nodes := map[string]bool{}
	edges := map[string]map[string]bool{}

	addEdge := func(referenced, referencing string) {
		nodes[referenced] = true
		nodes[referencing] = true
		if referenced == referencing {
			return
		}
		if edges[referenced] == nil {
			edges[referenced] = map[string]bool{}
		}
		edges[referenced][referencing] = true
	}

	for key, t := range local.Tables {
		nodes[key] = true
		nodes[t.Name] = true
		nodes[renames.PreviousTable(schemaName, t.Name)] = true
	}
	for key := range remote.Tables {
		nodes[key] = true
	}
	for key, fks := range local.ForeignKeys {
		from := key
		if t, ok := local.Tables[key]; ok {
			from = t.Name
		}
		for _, fk := range fks {
			addEdge(referencedNode(schemaName, fk), from)
		}
	}
	for key, fks := range remote.ForeignKeys {
		for _, fk := range fks {
			addEdge(referencedNode(remote.Schema, fk), key)
		}
	}

	adjList := make(map[string][]string, len(edges))
	for from, to := range edges {
		for name := range to {
			adjList[from] = append(adjList[from], name)
		}
	}
	return sortTableNodes(nodes, adjList)
}

func referencedNode(schemaName string, fk *snapshot.ConstraintInfo) string {
	if fk.ReferencedSchema == "" || fk.ReferencedSchema == schemaName {
		return fk.ReferencedTable
	}
	return fk.ReferencedSchema + "." + fk.ReferencedTable
}

// sortTableNodes runs Kahn's algorithm over adjList (referenced ->
// referencing). When only cycles remain, the first unprocessed node in
// alphabetical order is released, which keeps the output deterministic.
// Breaking a cycle this way is safe because foreign keys are always added
// after every table exists.
func sortTableNodes(nodes map[string]bool, adjList map[string][]string) []string {
	insertionOrder := make([]string, 0, len(nodes))
	for name := range nodes {
		insertionOrder = append(insertionOrder, name)
	}
	sort.Strings(insertionOrder)

	inDegree := make(map[string]int, len(nodes))
	for _, name := range insertionOrder {
		for _, neighbor := range adjList[name] {
			inDegree[neighbor]++
		}
	}

	var queue []string
	for _, name := range insertionOrder {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	result := make([]string, 0, len(nodes))
	processed := make(map[string]bool, len(nodes))
	for len(result) < len(nodes) {
		if len(queue) == 0 {
			next := nextInOrder(insertionOrder, processed)
			if next == "" {
				break
			}
			queue = append(queue, next)
			inDegree[next] = 0
		}

		current := queue[0]
		queue = queue[1:]
		if processed[current] {
			continue
		}
		processed[current] = true
		result = append(result, current)

		neighbors := append([]string(nil), adjList[current]...)
		sort.Strings(neighbors)
		for _, neighbor := range neighbors {
			inDegree[neighbor]--
			// processed guards against re-queueing nodes released by cycle
			// breaking.
			if inDegree[neighbor] <= 0 && !processed[neighbor] {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}
	return result
}

func nextInOrder(order []string, processed map[string]bool) string {
	for _, name := range order {
		if !processed[name] {
			return name
		}
	}
	return ""
}
