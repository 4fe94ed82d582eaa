package actor

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/quill/pkg/models"
)

const plannerPrompt = `You are planning how a team of specialized actors will accomplish a goal.

## Goal
%s

%s
## Available Actors
%s

## Rules
1. Break the goal into 2-8 concrete tasks.
2. Assign each task to exactly one available actor. Use the exact actor name shown above.
3. Dependencies are zero-based indices of earlier tasks in your list.
4. The final task should integrate or complete the work of the others.
5. Priority is one of: critical, high, medium, low.

## Output Format
Respond with ONLY a JSON object in this exact format:
{
  "mainGoal": "one sentence restating the goal",
  "tasks": [
    {
      "title": "short task title",
      "description": "what the actor must do",
      "actorType": "researcher",
      "dependencies": [],
      "priority": "high",
      "estimatedCompletion": "5m"
    }
  ]
}`

var actorDescriptions = map[models.ActorType]string{
	models.ActorResearcher: "gathers facts, background and sources",
	models.ActorAnalyst:    "interprets information and produces insights and recommendations",
	models.ActorCoder:      "writes and runs code to compute or verify results",
	models.ActorSummarizer: "condenses upstream results into a short summary with highlights",
	models.ActorWriter:     "produces polished long-form documents",
}

func buildPlannerPrompt(goal, extra string, actors []string) string {
	if extra != "" {
		extra = "## Context\n" + extra + "\n"
	}
	return fmt.Sprintf(plannerPrompt, goal, extra, strings.Join(actors, "\n"))
}

func describeActor(t models.ActorType) string {
	return fmt.Sprintf("- %s: %s", t, actorDescriptions[t])
}

func describeCustomActor(a models.CustomActor) string {
	desc := a.Description
	if desc == "" {
		desc = shorten(a.Instructions, 80)
	}
	return fmt.Sprintf("- %s%s: %s (%s)", models.CustomActorPrefix, a.ID, a.Name, desc)
}

const researchPrompt = `Research the following task.

## Task
%s

%s
%s
Report your findings in markdown. Include a "Key Points" section as a bulleted
list and cite any sources as full URLs.`

const analysisPrompt = `Analyze the following task.

## Task
%s

%s
%s
Respond with ONLY a JSON object:
{"analysis": "your analysis", "insights": ["..."], "recommendations": ["..."]}`

const codePrompt = `Write %s code for the following task.

## Task
%s

%s
%s
Respond with a short explanation followed by exactly one fenced code block
tagged with the language. The code must run non-interactively and print its
results to stdout.`

const summaryPrompt = `Summarize the results below for this task.

## Task
%s

%s
%s
Write one short paragraph, then a bulleted list of the most important highlights.`

const writingPrompt = `Write the document requested by this task.

## Task
%s

%s
%s
Write complete, polished markdown that starts with a "# " title heading.`

const customPrompt = `## Task
%s

%s
%s`

func taskHeader(task *models.Task) string {
	if task.Description == "" || task.Description == task.Title {
		return task.Title
	}
	return task.Title + "\n\n" + task.Description
}

func upstreamSection(upstream string) string {
	if upstream == "" {
		return ""
	}
	return "## Results From Earlier Tasks\n" + upstream + "\n"
}

func goalSection(goal string) string {
	if goal == "" {
		return ""
	}
	return "## Overall Goal\n" + goal + "\n"
}
