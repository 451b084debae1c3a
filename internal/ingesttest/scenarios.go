package ingesttest

import (
	"fmt"
	"time"
)

// Result is the outcome of one scenario.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Report is the full run's outcome.
type Report struct {
	Results []Result
}

func (r *Report) add(name string, passed bool, detail string) {
	r.Results = append(r.Results, Result{Name: name, Passed: passed, Detail: detail})
}

// Passed reports whether every scenario passed.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Run drives all six concrete scenarios of spec §8 against client, waiting
// settleWait between submission and worker-dependent assertions (there is
// no synchronous signal that the re-score worker has finished a job, so each
// such step sleeps once for settleWait, the caller's --timeout, and does not
// poll).
func Run(client *Client, settleWait time.Duration) *Report {
	report := &Report{}

	runExactDuplicateFastPath(client, report)
	runNearDuplicateSlowPath(client, report, settleWait)
	runUniqueArticle(client, report, settleWait)
	runClusterMerge(client, report, settleWait)
	runRecheck(client, report, settleWait)
	runPaginationAndTitleSearch(client, report, settleWait)

	return report
}

func runExactDuplicateFastPath(client *Client, report *Report) {
	const name = "exact-duplicate fast path"
	now := time.Now().UTC()

	a := ArticleFixture{ArticleID: "it-fire-a", Title: "Fire", Content: "Fire in Tai Po", PublishTime: now, Source: "seed"}
	if status, _, err := client.SubmitArticle(a); err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("submitting A failed: status=%d err=%v", status, err))
		return
	}

	b := ArticleFixture{ArticleID: "it-fire-b", Title: "Fire", Content: "Fire in Tai Po", PublishTime: now, Source: "seed"}
	if status, _, err := client.SubmitArticle(b); err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("submitting B failed: status=%d err=%v", status, err))
		return
	}

	status, body, err := client.GetArticle(b.ArticleID)
	if err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("get B failed: status=%d err=%v", status, err))
		return
	}
	article, _ := body["article"].(map[string]interface{})
	if article["cluster_status"] != "matched" || article["cluster_id"] == nil {
		report.add(name, false, fmt.Sprintf("B not fast-path matched immediately: %v", article))
		return
	}
	report.add(name, true, "B matched A's cluster without waiting for the worker")
}

func runNearDuplicateSlowPath(client *Client, report *Report, wait time.Duration) {
	const name = "near-duplicate slow path"
	now := time.Now().UTC()

	body := "香港大埔公寓发生火灾，消防正在扑救。"
	a := ArticleFixture{ArticleID: "it-nd-a", Title: "香港大埔公寓火灾", Content: body, PublishTime: now, Source: "seed"}
	b := ArticleFixture{ArticleID: "it-nd-b", Title: "香港大埔居民楼火灾", Content: body, PublishTime: now, Source: "seed"}

	if status, _, err := client.SubmitArticle(a); err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("submitting A failed: status=%d err=%v", status, err))
		return
	}
	if status, _, err := client.SubmitArticle(b); err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("submitting B failed: status=%d err=%v", status, err))
		return
	}

	time.Sleep(wait)

	statusA, bodyA, err := client.GetArticle(a.ArticleID)
	if err != nil || statusA != 200 {
		report.add(name, false, fmt.Sprintf("get A failed: status=%d err=%v", statusA, err))
		return
	}
	articleA, _ := bodyA["article"].(map[string]interface{})

	statusSim, bodySim, err := client.GetSimilar(b.ArticleID)
	if err != nil || statusSim != 200 {
		report.add(name, false, fmt.Sprintf("get B similar failed (worker may not have settled yet): status=%d err=%v", statusSim, err))
		return
	}
	similars, _ := bodySim["similar_articles"].([]interface{})

	foundA := false
	for _, s := range similars {
		entry, _ := s.(map[string]interface{})
		if entry["ArticleID"] == a.ArticleID || entry["article_id"] == a.ArticleID {
			foundA = true
		}
	}

	if articleA["cluster_id"] == nil || !foundA {
		report.add(name, false, "A and B did not converge to the same cluster within the wait window")
		return
	}
	report.add(name, true, "A and B converged to the same cluster")
}

func runUniqueArticle(client *Client, report *Report, wait time.Duration) {
	const name = "unique article"
	now := time.Now().UTC()

	u := ArticleFixture{ArticleID: "it-unique-1", Title: "Quarterly robotics export figures", Content: "A wholly unrelated discussion of robotics export statistics for the fiscal quarter, sharing no vocabulary with the fire scenarios above.", PublishTime: now, Source: "seed"}
	if status, _, err := client.SubmitArticle(u); err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("submitting failed: status=%d err=%v", status, err))
		return
	}

	time.Sleep(wait)

	status, body, err := client.GetSimilar(u.ArticleID)
	if err != nil {
		report.add(name, false, fmt.Sprintf("request error: %v", err))
		return
	}
	if status != 404 {
		report.add(name, false, fmt.Sprintf("expected 404 CLUSTER_PENDING for a unique article, got %d: %v", status, body))
		return
	}
	report.add(name, true, "unique article's /similar returned 404 as spec'd")
}

func runClusterMerge(client *Client, report *Report, wait time.Duration) {
	const name = "cluster merge"
	now := time.Now().UTC()

	body := "台風接近に伴う港湾作業の一時停止について、関係者への周知を行った。"
	x := ArticleFixture{ArticleID: "it-merge-x", Title: "Typhoon halts port operations", Content: body, PublishTime: now, Source: "seed"}
	y := ArticleFixture{ArticleID: "it-merge-y", Title: "Port work suspended for typhoon", Content: body, PublishTime: now, Source: "seed"}

	if status, _, err := client.SubmitArticle(x); err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("submitting X failed: status=%d err=%v", status, err))
		return
	}
	time.Sleep(wait)
	if status, _, err := client.SubmitArticle(y); err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("submitting Y failed: status=%d err=%v", status, err))
		return
	}
	time.Sleep(wait)

	z := ArticleFixture{ArticleID: "it-merge-z", Title: "Typhoon port suspension notice", Content: body, PublishTime: now, Source: "seed"}
	if status, _, err := client.SubmitArticle(z); err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("submitting Z failed: status=%d err=%v", status, err))
		return
	}
	time.Sleep(wait)

	statusX, bodyX, err := client.GetArticle(x.ArticleID)
	statusY, bodyY, errY := client.GetArticle(y.ArticleID)
	statusZ, bodyZ, errZ := client.GetArticle(z.ArticleID)
	if err != nil || errY != nil || errZ != nil || statusX != 200 || statusY != 200 || statusZ != 200 {
		report.add(name, false, "failed to fetch X, Y, or Z")
		return
	}

	cx, _ := bodyX["article"].(map[string]interface{})
	cy, _ := bodyY["article"].(map[string]interface{})
	cz, _ := bodyZ["article"].(map[string]interface{})

	if cx["cluster_id"] == nil || cx["cluster_id"] != cy["cluster_id"] || cy["cluster_id"] != cz["cluster_id"] {
		report.add(name, false, fmt.Sprintf("X, Y, Z did not converge: x=%v y=%v z=%v", cx["cluster_id"], cy["cluster_id"], cz["cluster_id"]))
		return
	}
	report.add(name, true, "X, Y, and Z converged to a single merged cluster")
}

func runRecheck(client *Client, report *Report, wait time.Duration) {
	const name = "recheck"
	status, body, err := client.Recheck([]string{"it-nd-a"}, "integration-test verification")
	if err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("recheck call failed: status=%d err=%v", status, err))
		return
	}
	if _, ok := body["job_id"]; !ok {
		report.add(name, false, "recheck response missing job_id")
		return
	}

	time.Sleep(wait)
	statusA, bodyA, err := client.GetArticle("it-nd-a")
	if err != nil || statusA != 200 {
		report.add(name, false, fmt.Sprintf("post-recheck get failed: status=%d err=%v", statusA, err))
		return
	}
	articleA, _ := bodyA["article"].(map[string]interface{})
	if articleA["cluster_status"] == "pending" {
		report.add(name, false, "article still pending after recheck settle window")
		return
	}
	report.add(name, true, "article re-settled after recheck")
}

func runPaginationAndTitleSearch(client *Client, report *Report, wait time.Duration) {
	const name = "pagination and title search"
	now := time.Now().UTC()

	for i := 0; i < 25; i++ {
		a := ArticleFixture{
			ArticleID:   "it-page-" + formatInt(i),
			Title:       "integration test article " + formatInt(i),
			Content:     "distinct filler content number " + formatInt(i) + " sharing nothing with other scenarios",
			PublishTime: now,
			Source:      "seed",
		}
		if status, _, err := client.SubmitArticle(a); err != nil || status != 200 {
			report.add(name, false, fmt.Sprintf("seeding article %d failed: status=%d err=%v", i, status, err))
			return
		}
	}
	time.Sleep(wait)

	status, body, err := client.Search(map[string]string{"title": "integration", "page": "2", "page_size": "10"})
	if err != nil || status != 200 {
		report.add(name, false, fmt.Sprintf("search failed: status=%d err=%v", status, err))
		return
	}

	total, _ := body["total"].(float64)
	page, _ := body["page"].(float64)
	pageSize, _ := body["page_size"].(float64)
	totalPages, _ := body["total_pages"].(float64)
	items, _ := body["items"].([]interface{})

	if int(total) != 25 || int(page) != 2 || int(pageSize) != 10 || int(totalPages) != 3 || len(items) != 10 {
		report.add(name, false, fmt.Sprintf("unexpected page shape: total=%v page=%v page_size=%v total_pages=%v items=%d", total, page, pageSize, totalPages, len(items)))
		return
	}
	report.add(name, true, "page 2 of 25 title-matched articles returned the expected shape")
}
