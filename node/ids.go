package node

import "github.com/fairplaylabs/adviser/graph"

// The closed set of node identifiers. Routing tables reference these
// constants only, so an unwired target is a compile failure of the graph
// rather than a surprise at request time.
const (
	NodeClassifier      graph.NodeID = "classifier"
	NodeQueryPlanner    graph.NodeID = "query_planner"
	NodeResearcher      graph.NodeID = "researcher"
	NodeExpander        graph.NodeID = "expander"
	NodeSynthesizer     graph.NodeID = "synthesizer"
	NodeQualityChecker  graph.NodeID = "quality_checker"
	NodeEscalate        graph.NodeID = "escalate"
	NodeCitationBuilder graph.NodeID = "citation_builder"
	NodeDisclaimerGuard graph.NodeID = "disclaimer_guard"
)

// Route keys returned by the pipeline routers.
const (
	RouteEscalate   graph.RouteKey = "escalate"
	RoutePlan       graph.RouteKey = "plan"
	RouteExpand     graph.RouteKey = "expand"
	RouteSynthesize graph.RouteKey = "synthesize"
	RouteRetry      graph.RouteKey = "retry"
	RouteAccept     graph.RouteKey = "accept"
)

// StatusLabels maps node ids to the client-facing progress labels used by
// the stream adapter.
func StatusLabels() map[graph.NodeID]string {
	return map[graph.NodeID]string{
		NodeClassifier:      "Understanding your question",
		NodeQueryPlanner:    "Planning the research",
		NodeResearcher:      "Searching authoritative sources",
		NodeExpander:        "Broadening the search",
		NodeSynthesizer:     "Drafting an answer",
		NodeQualityChecker:  "Reviewing the draft",
		NodeEscalate:        "Preparing a referral",
		NodeCitationBuilder: "Collecting citations",
		NodeDisclaimerGuard: "Finalizing",
	}
}
