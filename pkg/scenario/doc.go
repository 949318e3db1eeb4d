// Package scenario runs scripted render sequences from YAML files.
//
// A scenario mounts trees on one root and steps a manual scheduler clock,
// so interrupted and resumed renders replay exactly:
//
//	name: reorder under load
//	mode: concurrent
//	steps:
//	  - render:
//	      tag: ul
//	      children:
//	        - {tag: li, key: a, text: a, cost: 3}
//	        - {tag: li, key: b, text: b, cost: 3}
//	    flush: frame
//	  - render:
//	      tag: ul
//	      children:
//	        - {tag: li, key: b, text: b}
//	        - {tag: li, key: a, text: a}
//	    priority: immediate
//	    expect: <ul><li>b</li><li>a</li></ul>
//
// Run returns every commit the scenario produced along with the final
// HTML and any expect checks that failed.
package scenario
