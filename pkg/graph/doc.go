// Package graph defines the parametric graph types shared by the engine,
// the state layer and the UI binding. Nodes are owned by the engine; this
// package only describes them and the values that flow into them.
package graph
