package app

import "math/rand/v2"

// Canned replies for the fun commands. The bot answers for itself; nothing
// here is directed at the sender.

var wisdoms = []string{
	"You cannot change what you refuse to confront.",
	"Sometimes good things fall apart so better things can fall together.",
	"Don't think of cost. Think of value.",
	"No matter how many mistakes you make or how slow you progress, you are still way ahead of everyone who isn't trying.",
	"The only way to do great work is to love what you do.",
	"Success is not final, failure is not fatal: It is the courage to continue that counts.",
	"Even a humble soup can warm the coldest evening.",
	"A shared meal tastes twice as good.",
	"Patience is the secret ingredient in every great stew.",
	"The only true wisdom is in knowing you know nothing.",
	"Even a broken clock is right twice a day.",
	"A journey of a thousand miles begins with a single step.",
	"Any fool can know. The point is to understand.",
	"The secret of life, though, is to fall seven times and to get up eight times.",
	"The unexamined life is not worth living.",
	"The best way out is always through.",
	"Happiness depends upon ourselves.",
	"We are what we repeatedly do. Excellence, then, is not an act, but a habit.",
	"Do what you can, with what you have, where you are.",
	"The greatest wealth is to live content with little.",
	"The best way to predict the future is to create it.",
	"The root of suffering is attachment.",
	"In the middle of difficulty lies opportunity.",
	"Life is really simple, but we insist on making it complicated.",
	"Do not dwell in the past, do not dream of the future, concentrate the mind on the present moment.",
	"If you tell the truth, you don't have to remember anything.",
	"It is better to be hated for what you are than to be loved for what you are not.",
	"I have not failed. I've just found 10,000 ways that won't work.",
	"In three words I can sum up everything I've learned about life: it goes on.",
	"Live as if you were to die tomorrow. Learn as if you were to live forever.",
	"That which does not kill us makes us stronger.",
	"What we think, we become.",
	"meow meow meow meow",
	"lucky message!",
}

var praiseResponses = []string{
	"yayyy thank you >w< :3c",
	"yippiee yippiee yippiee",
	"aww you're too nice",
	"hehe thanks",
}

var insultResponses = []string{
	"sowwyyy",
	"oh so that's how it is",
	"i'm trying my best",
	"i-i'll do better",
}

func pickLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[rand.IntN(len(lines))]
}
